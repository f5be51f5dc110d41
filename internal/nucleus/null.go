package nucleus

import (
	"context"

	"github.com/sebastianmicu24/scipathj/internal/pipeline"
)

// NullDetector implements pipeline.NucleusDetector and reports no nuclei
// for any tile. The star-convex-polygon detector itself is an injected,
// out-of-scope collaborator (spec.md 1); this exists so a batch can be
// wired and run end-to-end (vessel segmentation, export) before a real
// detector is plugged in.
type NullDetector struct{}

func (NullDetector) Detect(ctx context.Context, tile pipeline.Image) ([]pipeline.DetectedPolygon, error) {
	return nil, nil
}
