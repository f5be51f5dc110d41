// Package nucleus implements NucleusAdapter (spec.md 4.3): percentile
// normalization, tiling with overlap, per-tile invocation of an injected
// pipeline.NucleusDetector, cross-tile non-maximum suppression, and
// probability-threshold filtering. The tiling/worker-invocation shape
// mirrors the teacher's own batching pattern in internal/sync/engine.go,
// generalized from file-sync jobs to image tiles.
package nucleus

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/pipeline"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

// Nucleus is a detected nucleus polygon after normalization, tiling, and
// cross-tile NMS, in full-image coordinates.
type Nucleus struct {
	Polygon     roi.Polygon
	Probability float64
}

// Warning records a non-fatal per-tile detector failure (spec.md 4.3:
// "a failing tile produces a warning event and an empty result for that
// tile, not a fatal pipeline error").
type Warning struct {
	TileIndex int
	Err       error
}

// Adapt runs the full NucleusAdapter pipeline over one deconvolved grayscale
// intensity image (callers typically pass the hematoxylin channel).
func Adapt(ctx context.Context, img pipeline.Image, detector pipeline.NucleusDetector, settings config.NuclearSegmentationSettings) ([]Nucleus, []Warning, error) {
	normalized := percentileNormalize(img, settings.NormPercentileLow, settings.NormPercentileHigh)

	tiles := tileImage(normalized, settings.TileSize, settings.TileOverlapFrac)

	var all []Nucleus
	var warnings []Warning

	for i, tile := range tiles {
		select {
		case <-ctx.Done():
			return nil, warnings, ctx.Err()
		default:
		}

		detected, err := detector.Detect(ctx, tile.image)
		if err != nil {
			warnings = append(warnings, Warning{TileIndex: i, Err: fmt.Errorf("nucleus: tile %d: %w", i, err)})
			continue
		}

		for _, d := range detected {
			if d.Probability < settings.ProbThreshold {
				continue
			}
			pts := make([]roi.Point, len(d.Vertices))
			for j, v := range d.Vertices {
				pts[j] = roi.Point{X: v.X + float32(tile.offsetX), Y: v.Y + float32(tile.offsetY)}
			}
			poly, perr := roi.NewPolygon(pts)
			if perr != nil {
				continue
			}
			all = append(all, Nucleus{Polygon: poly, Probability: d.Probability})
		}
	}

	merged := nonMaxSuppress(all, settings.NMSThreshold)
	return merged, warnings, nil
}

// percentileNormalize rescales img's single channel so that the
// low/high percentile values map to [0, 1], clamping outliers (spec.md
// 4.3 step 1).
func percentileNormalize(img pipeline.Image, low, high float64) pipeline.Image {
	n := img.Width * img.Height
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = img.Pixels[i*img.Channels]
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	lo := stat.Quantile(low/100, stat.Empirical, sorted, nil)
	hi := stat.Quantile(high/100, stat.Empirical, sorted, nil)
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	out := pipeline.NewImage(img.Width, img.Height, 1, pipeline.Depth32Float)
	for i := 0; i < n; i++ {
		v := (samples[i] - lo) / span
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out.Pixels[i] = v
	}
	return out
}

type tile struct {
	image             pipeline.Image
	offsetX, offsetY int
}

// tileImage splits img into overlapping square tiles of the configured
// size and overlap fraction (spec.md 4.3 step 2), covering the whole
// image even when its dimensions aren't an exact multiple of tileSize.
func tileImage(img pipeline.Image, tileSize int, overlapFrac float64) []tile {
	if tileSize <= 0 || tileSize >= img.Width && tileSize >= img.Height {
		return []tile{{image: img, offsetX: 0, offsetY: 0}}
	}

	stride := int(float64(tileSize) * (1 - overlapFrac))
	if stride < 1 {
		stride = 1
	}

	var tiles []tile
	for y := 0; y < img.Height; y += stride {
		for x := 0; x < img.Width; x += stride {
			w := tileSize
			if x+w > img.Width {
				w = img.Width - x
			}
			h := tileSize
			if y+h > img.Height {
				h = img.Height - y
			}
			if w <= 0 || h <= 0 {
				continue
			}

			sub := pipeline.NewImage(w, h, img.Channels, img.Depth)
			for ty := 0; ty < h; ty++ {
				for tx := 0; tx < w; tx++ {
					for c := 0; c < img.Channels; c++ {
						sub.Set(tx, ty, c, img.At(x+tx, y+ty, c))
					}
				}
			}
			tiles = append(tiles, tile{image: sub, offsetX: x, offsetY: y})

			if x+w >= img.Width {
				break
			}
		}
		if y+tileSize >= img.Height {
			break
		}
	}
	return tiles
}

// nonMaxSuppress removes duplicate detections of the same nucleus across
// overlapping tile regions by IoU (spec.md 4.3 step 4), preferring the
// higher-probability detection in each conflicting pair.
func nonMaxSuppress(nuclei []Nucleus, iouThreshold float64) []Nucleus {
	sort.Slice(nuclei, func(i, j int) bool { return nuclei[i].Probability > nuclei[j].Probability })

	kept := make([]Nucleus, 0, len(nuclei))
	suppressed := make([]bool, len(nuclei))

	for i := range nuclei {
		if suppressed[i] {
			continue
		}
		kept = append(kept, nuclei[i])
		for j := i + 1; j < len(nuclei); j++ {
			if suppressed[j] {
				continue
			}
			if iou(nuclei[i].Polygon, nuclei[j].Polygon) >= iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// iou approximates intersection-over-union by the intersection-over-union
// of the two polygons' bounding boxes, cheap enough to run pairwise
// across every tile-boundary candidate without a general polygon-clip
// routine (full polygon intersection is left to internal/cellbuild, which
// genuinely needs exact clipping for Voronoi cells).
func iou(a, b roi.Polygon) float64 {
	ba := roi.PolygonBounds(a)
	bb := roi.PolygonBounds(b)

	x1 := maxF(ba.X, bb.X)
	y1 := maxF(ba.Y, bb.Y)
	x2 := minF(ba.X+ba.Width, bb.X+bb.Width)
	y2 := minF(ba.Y+ba.Height, bb.Y+bb.Height)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	intersection := float64(x2-x1) * float64(y2-y1)
	areaA := float64(ba.Width) * float64(ba.Height)
	areaB := float64(bb.Width) * float64(bb.Height)
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
