package deconv

import (
	"math"
	"testing"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/pipeline"
)

func TestPrepareInverseDefaultMatrix(t *testing.T) {
	if _, err := PrepareInverse(config.DefaultColorDeconvolutionSettings()); err != nil {
		t.Fatalf("default Ruifrok H&E matrix should invert cleanly: %v", err)
	}
}

func TestPrepareInverseRejectsSingularMatrix(t *testing.T) {
	singular := config.StainMatrix{
		{1, 0, 0},
		{2, 0, 0}, // linearly dependent on row 0
		{0, 0, 1},
	}
	_, err := PrepareInverse(config.ColorDeconvolutionSettings{StainMatrix: singular})
	if err == nil {
		t.Fatal("expected singular stain matrix to be rejected")
	}
	if pipeline.KindOf(err) != pipeline.ErrStainMatrixSingular {
		t.Fatalf("expected ErrStainMatrixSingular, got %v", pipeline.KindOf(err))
	}
}

// TestDeconvolveRoundTrip is the property from spec.md 8.1: an RGB image
// synthesized as exp(-M*s) for random stain intensities s >= 0 should
// deconvolve back to approximately s.
func TestDeconvolveRoundTrip(t *testing.T) {
	settings := config.DefaultColorDeconvolutionSettings()
	resolved := resolvedMatrix(settings.StainMatrix)
	inv, err := PrepareInverse(settings)
	if err != nil {
		t.Fatalf("prepare inverse: %v", err)
	}

	stainIntensities := [3]float64{0.3, 0.5, 0.05}

	img := pipeline.NewImage(1, 1, 3, pipeline.Depth8)
	for c := 0; c < 3; c++ {
		od := resolved[0][c]*stainIntensities[0] + resolved[1][c]*stainIntensities[1] + resolved[2][c]*stainIntensities[2]
		transmittance := math.Pow(10, -od)
		raw := transmittance*256 - 1
		if raw < 0 {
			raw = 0
		}
		if raw > 255 {
			raw = 255
		}
		img.Set(0, 0, c, raw)
	}

	channels, err := Deconvolve(img, inv)
	if err != nil {
		t.Fatalf("deconvolve: %v", err)
	}

	got := [3]float64{
		float64(channels.Hematoxylin[0]),
		float64(channels.Eosin[0]),
		float64(channels.Background[0]),
	}
	for i := range got {
		if math.Abs(got[i]-stainIntensities[i]) > 0.05 {
			t.Errorf("stain %d: got %v want %v (within tolerance)", i, got[i], stainIntensities[i])
		}
	}
}

func TestDeconvolveRejectsNonRGB(t *testing.T) {
	settings := config.DefaultColorDeconvolutionSettings()
	inv, err := PrepareInverse(settings)
	if err != nil {
		t.Fatalf("prepare inverse: %v", err)
	}
	img := pipeline.NewImage(2, 2, 1, pipeline.Depth8)
	if _, err := Deconvolve(img, inv); err == nil {
		t.Fatal("expected error for non-3-channel image")
	}
}
