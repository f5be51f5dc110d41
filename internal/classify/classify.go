package classify

import (
	"math"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

// Classify assembles a feature vector from roiFeatures in the model's
// declared feature order (missing features become NaN, spec.md 4.6),
// accumulates leaf values per class across the round-robined tree
// ensemble, applies softmax, and falls back to "unknown" when no class
// clears confidence_threshold.
func Classify(roiFeatures map[string]roi.FeatureValue, model *Model, settings config.ClassificationSettings) roi.Classification {
	vector := assembleVector(roiFeatures, model.FeatureNames)

	nClasses := len(model.ClassNames)
	scores := make([]float64, nClasses)
	copy(scores, model.BaseScore)
	if len(scores) < nClasses {
		scores = append(scores, make([]float64, nClasses-len(scores))...)
	}

	for i, tree := range model.Trees {
		class := i % nClasses
		scores[class] += tree.Predict(vector)
	}

	probs := softmax(scores)

	bestClass := 0
	bestProb := probs[0]
	for i, p := range probs {
		if p > bestProb {
			bestClass, bestProb = i, p
		}
	}

	probMap := make(map[string]float64, nClasses)
	for i, name := range model.ClassNames {
		probMap[name] = probs[i]
	}

	predicted := model.ClassNames[bestClass]
	if bestProb < settings.ConfidenceThreshold {
		predicted = "unknown"
	}

	return roi.Classification{PredictedClass: predicted, Probabilities: probMap}
}

// assembleVector builds the feature vector in model order, defaulting
// absent features to NaN so tree traversal's missing-value convention
// applies uniformly. ClassificationSettings.FeatureSelection is not
// applied here; the model's feature order alone decides the vector.
func assembleVector(roiFeatures map[string]roi.FeatureValue, order []string) []float64 {
	vector := make([]float64, len(order))
	for i, name := range order {
		fv, ok := roiFeatures[name]
		if !ok || fv.IsString {
			vector[i] = math.NaN()
			continue
		}
		vector[i] = fv.Number
	}
	return vector
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	sum := 0.0
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}
