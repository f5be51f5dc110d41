// Package classify implements Classifier (spec.md 4.6): gradient-boosted
// decision tree inference over a pickled model artifact, loaded with
// github.com/nlpodyssey/gopickle the way the wider retrieved pack loads
// Python-trained model files without a CGo dependency on the original
// training framework.
package classify

import (
	"fmt"
	"math"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/sebastianmicu24/scipathj/internal/pipeline"
)

// Node is one node of a decision tree: either an internal split (Leaf
// false) or a terminal leaf carrying a value to accumulate.
type Node struct {
	Leaf      bool
	Value     float64 // leaf output, unused for internal nodes
	Feature   int     // index into Model.FeatureNames, unused for leaves
	Threshold float64
	Left      *Node // taken when feature value <= Threshold
	Right     *Node
}

// Model is a loaded gradient-boosted-tree ensemble (spec.md 4.6): one
// decision tree per boosting round per class, round-robined across
// classes the way xgboost and lightgbm serialize multi-class models.
type Model struct {
	ClassNames   []string
	FeatureNames []string
	BaseScore    []float64
	Trees        []*Node // Trees[i] contributes to class i % len(ClassNames)
}

// Load reads a pickled model file from path and converts its generic
// Python object graph into a typed Model. The expected pickle shape is a
// top-level dict with keys "class_names", "feature_names", "base_score",
// and "trees" (a list of recursively nested {"feature","threshold",
// "left","right"} / {"leaf"} dicts).
func Load(path string) (*Model, error) {
	obj, err := pickle.Load(path)
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrModelFormat, "", "failed to unpickle model file", err)
	}

	root, ok := obj.(*types.Dict)
	if !ok {
		return nil, pipeline.NewError(pipeline.ErrModelFormat, "", "model file is not a top-level dict", nil)
	}

	classNames, err := stringList(root, "class_names")
	if err != nil {
		return nil, err
	}
	featureNames, err := stringList(root, "feature_names")
	if err != nil {
		return nil, err
	}
	baseScore, err := floatList(root, "base_score")
	if err != nil {
		return nil, err
	}

	rawTrees, ok := dictGet(root, "trees")
	if !ok {
		return nil, pipeline.NewError(pipeline.ErrModelFormat, "", "model missing \"trees\"", nil)
	}
	treeList, ok := rawTrees.([]interface{})
	if !ok {
		return nil, pipeline.NewError(pipeline.ErrModelFormat, "", "\"trees\" is not a list", nil)
	}

	trees := make([]*Node, len(treeList))
	for i, t := range treeList {
		node, err := parseNode(t)
		if err != nil {
			return nil, pipeline.NewError(pipeline.ErrModelFormat, "", fmt.Sprintf("tree %d malformed", i), err)
		}
		trees[i] = node
	}

	return &Model{
		ClassNames:   classNames,
		FeatureNames: featureNames,
		BaseScore:    baseScore,
		Trees:        trees,
	}, nil
}

func parseNode(v interface{}) (*Node, error) {
	d, ok := v.(*types.Dict)
	if !ok {
		return nil, fmt.Errorf("classify: tree node is not a dict")
	}

	if leafVal, ok := dictGet(d, "leaf"); ok {
		f, err := toFloat(leafVal)
		if err != nil {
			return nil, err
		}
		return &Node{Leaf: true, Value: f}, nil
	}

	featureRaw, ok := dictGet(d, "feature")
	if !ok {
		return nil, fmt.Errorf("classify: non-leaf node missing \"feature\"")
	}
	featureIdx, err := toFloat(featureRaw)
	if err != nil {
		return nil, err
	}
	thresholdRaw, ok := dictGet(d, "threshold")
	if !ok {
		return nil, fmt.Errorf("classify: non-leaf node missing \"threshold\"")
	}
	threshold, err := toFloat(thresholdRaw)
	if err != nil {
		return nil, err
	}

	leftRaw, ok := dictGet(d, "left")
	if !ok {
		return nil, fmt.Errorf("classify: non-leaf node missing \"left\"")
	}
	rightRaw, ok := dictGet(d, "right")
	if !ok {
		return nil, fmt.Errorf("classify: non-leaf node missing \"right\"")
	}
	left, err := parseNode(leftRaw)
	if err != nil {
		return nil, err
	}
	right, err := parseNode(rightRaw)
	if err != nil {
		return nil, err
	}

	return &Node{Feature: int(featureIdx), Threshold: threshold, Left: left, Right: right}, nil
}

func dictGet(d *types.Dict, key string) (interface{}, bool) {
	return d.Get(key)
}

func stringList(d *types.Dict, key string) ([]string, error) {
	raw, ok := dictGet(d, key)
	if !ok {
		return nil, pipeline.NewError(pipeline.ErrModelFormat, "", fmt.Sprintf("model missing %q", key), nil)
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, pipeline.NewError(pipeline.ErrModelFormat, "", fmt.Sprintf("%q is not a list", key), nil)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, pipeline.NewError(pipeline.ErrModelFormat, "", fmt.Sprintf("%q[%d] is not a string", key, i), nil)
		}
		out[i] = s
	}
	return out, nil
}

func floatList(d *types.Dict, key string) ([]float64, error) {
	raw, ok := dictGet(d, key)
	if !ok {
		return nil, pipeline.NewError(pipeline.ErrModelFormat, "", fmt.Sprintf("model missing %q", key), nil)
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, pipeline.NewError(pipeline.ErrModelFormat, "", fmt.Sprintf("%q is not a list", key), nil)
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return nil, pipeline.NewError(pipeline.ErrModelFormat, "", fmt.Sprintf("%q[%d] is not numeric", key, i), err)
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("classify: expected a number, got %T", v)
	}
}

// Predict walks a single tree for one feature vector.
func (n *Node) Predict(features []float64) float64 {
	if n.Leaf {
		return n.Value
	}
	v := features[n.Feature]
	if math.IsNaN(v) {
		// Missing-value convention: default to the left branch, matching
		// xgboost's "default direction" handling for absent features.
		return n.Left.Predict(features)
	}
	if v <= n.Threshold {
		return n.Left.Predict(features)
	}
	return n.Right.Predict(features)
}
