package imagesource

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/sebastianmicu24/scipathj/internal/pipeline"
)

// StandardDecoder implements pipeline.ImageReader over a Backend using the
// standard image.Decode registry plus golang.org/x/image/tiff for the
// TIFF variants common to slide scanners. Pyramidal/multi-resolution
// formats are out of scope (spec.md 1); a decode failure on those is
// returned as a wrapped decode error (not a *pipeline.PipelineError), and
// the orchestrator reports it as ErrIO like any other read failure.
type StandardDecoder struct {
	Backend Backend
}

func (d StandardDecoder) Read(ctx context.Context, key string) (pipeline.Image, error) {
	r, err := d.Backend.Open(ctx, key)
	if err != nil {
		return pipeline.Image{}, err
	}
	defer func() { _ = r.Close() }()

	src, _, err := image.Decode(r)
	if err != nil {
		return pipeline.Image{}, fmt.Errorf("imagesource: decode %q: %w", key, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	img := pipeline.NewImage(w, h, 3, pipeline.Depth8)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r16, g16, b16, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			img.Set(x, y, 0, float64(r16>>8))
			img.Set(x, y, 1, float64(g16>>8))
			img.Set(x, y, 2, float64(b16>>8))
		}
	}
	return img, nil
}
