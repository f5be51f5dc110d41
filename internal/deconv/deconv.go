// Package deconv implements Ruifrok-Johnston optical-density color
// deconvolution (spec.md 4.1), separating an H&E RGB image into
// hematoxylin, eosin and background channels. The 3x3 stain-matrix
// inversion uses gonum's mat package, the same linear-algebra library the
// rest of the retrieved pack (o9nn-echo.go) depends on for numeric work.
package deconv

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/pipeline"
)

// Channels holds the three deconvolved optical-density matrices, each with
// the same dimensions as the source image (spec.md 3
// "OpticalDensityChannels").
type Channels struct {
	Width, Height int
	Hematoxylin   []float32
	Eosin         []float32
	Background    []float32
}

func (c Channels) At(x, y int, which string) float32 {
	idx := y*c.Width + x
	switch which {
	case "hematoxylin":
		return c.Hematoxylin[idx]
	case "eosin":
		return c.Eosin[idx]
	case "background":
		return c.Background[idx]
	default:
		return 0
	}
}

// maxConditionNumber bounds how close to singular a stain matrix may be
// before it is rejected (spec.md 4.1 "condition number exceeds 1e12").
const maxConditionNumber = 1e12

// resolvedMatrix fills in a zero background row as the normalized cross
// product of the H and E rows (spec.md 4.1).
func resolvedMatrix(m config.StainMatrix) config.StainMatrix {
	if m[2] == [3]float64{0, 0, 0} {
		h, e := m[0], m[1]
		cross := [3]float64{
			h[1]*e[2] - h[2]*e[1],
			h[2]*e[0] - h[0]*e[2],
			h[0]*e[1] - h[1]*e[0],
		}
		norm := math.Sqrt(cross[0]*cross[0] + cross[1]*cross[1] + cross[2]*cross[2])
		if norm > 1e-12 {
			cross[0] /= norm
			cross[1] /= norm
			cross[2] /= norm
		}
		m[2] = cross
	}
	return m
}

// Inverse precomputes the inverse of a resolved stain matrix once per
// pipeline run (spec.md 4.1 "Performance").
type Inverse struct {
	inv [3][3]float64
}

// PrepareInverse validates and inverts stain_matrix, returning
// pipeline.ErrStainMatrixSingular if its condition number exceeds
// maxConditionNumber.
func PrepareInverse(settings config.ColorDeconvolutionSettings) (Inverse, error) {
	resolved := resolvedMatrix(settings.StainMatrix)

	data := make([]float64, 0, 9)
	for _, row := range resolved {
		data = append(data, row[:]...)
	}
	m := mat.NewDense(3, 3, data)

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDNone); !ok {
		return Inverse{}, pipeline.NewError(pipeline.ErrStainMatrixSingular, "", "SVD factorization failed", nil)
	}
	values := svd.Values(nil)
	if len(values) < 3 || values[2] < 1e-15 || values[0]/values[2] > maxConditionNumber {
		return Inverse{}, pipeline.NewError(pipeline.ErrStainMatrixSingular, "",
			"stain matrix condition number too large", nil)
	}

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Inverse{}, pipeline.NewError(pipeline.ErrStainMatrixSingular, "", "matrix not invertible", err)
	}

	var out Inverse
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.inv[i][j] = inv.At(i, j)
		}
	}
	return out, nil
}

// Deconvolve applies the inverse stain matrix to every pixel of img,
// producing three float32 channels (spec.md 4.1).
//
// img must be 3-channel (RGB), 8-bit per channel.
func Deconvolve(img pipeline.Image, inv Inverse) (Channels, error) {
	if img.Channels != 3 {
		return Channels{}, fmt.Errorf("deconv: expected 3-channel RGB image, got %d channels", img.Channels)
	}

	n := img.Width * img.Height
	out := Channels{
		Width: img.Width, Height: img.Height,
		Hematoxylin: make([]float32, n),
		Eosin:       make([]float32, n),
		Background:  make([]float32, n),
	}

	maxVal := img.MaxSampleValue()
	for y := 0; y < img.Height; y++ {
		rowOffset := y * img.Width
		for x := 0; x < img.Width; x++ {
			var od [3]float64
			for c := 0; c < 3; c++ {
				raw := img.At(x, y, c) / maxVal * 255
				od[c] = -math.Log10((raw + 1) / 256)
			}

			idx := rowOffset + x
			// Rows of the stain matrix are stain vectors, so od = M^T * s and
			// s = (M^-1)^T * od: stain i reads column i of the inverse.
			out.Hematoxylin[idx] = float32(inv.inv[0][0]*od[0] + inv.inv[1][0]*od[1] + inv.inv[2][0]*od[2])
			out.Eosin[idx] = float32(inv.inv[0][1]*od[0] + inv.inv[1][1]*od[1] + inv.inv[2][1]*od[2])
			out.Background[idx] = float32(inv.inv[0][2]*od[0] + inv.inv[1][2]*od[1] + inv.inv[2][2]*od[2])
		}
	}

	return out, nil
}
