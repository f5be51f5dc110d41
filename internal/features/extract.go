// Package features implements FeatureExtractor (spec.md 4.5): per-ROI
// morphology, intensity, and spatial feature groups. Morphology and
// spatial features are pure geometry over internal/roi; intensity
// statistics (mean, stddev, skewness, kurtosis, percentiles) use gonum's
// stat package, the same library internal/nucleus already depends on for
// percentile normalization.
package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

// ChannelSample is one named intensity channel rasterized to the same
// width/height as the image the ROI belongs to (e.g. "hematoxylin",
// "eosin", "background", "gray").
type ChannelSample struct {
	Name   string
	Width  int
	Height int
	Pixels []float32
}

// Context carries everything FeatureExtractor needs beyond the ROI
// itself: the rasterized intensity channels, every other ROI's centroid
// in the same image (for spatial neighbor statistics), and the vessel
// polygons (for distance-to-nearest-vessel).
type Context struct {
	Channels       []ChannelSample
	AllCentroids   []roi.Point
	SelfIndex      int // index of this ROI's centroid within AllCentroids, or -1
	Vessels        []roi.Polygon
}

// Extract computes every enabled feature group for one ROI (spec.md 4.5).
// Degenerate (zero-area) ROIs get NaN for area-normalized features rather
// than dividing by zero.
func Extract(geom roi.Geometry, ctx Context, settings config.FeatureExtractionSettings) map[string]roi.FeatureValue {
	out := make(map[string]roi.FeatureValue)

	for _, group := range settings.Groups {
		switch group {
		case config.GroupMorphology:
			morphology(geom, out)
		case config.GroupIntensity:
			intensity(geom, ctx.Channels, settings.Channels, settings.SignificantDigits, out)
		case config.GroupSpatial:
			spatial(geom, ctx, settings.NeighborRadius, out)
		}
	}
	return out
}

func morphology(geom roi.Geometry, out map[string]roi.FeatureValue) {
	bounds := geom.Bounds()
	out["bounding_box_x"] = roi.Num(float64(bounds.X))
	out["bounding_box_y"] = roi.Num(float64(bounds.Y))
	out["bounding_box_width"] = roi.Num(float64(bounds.Width))
	out["bounding_box_height"] = roi.Num(float64(bounds.Height))

	poly := geom.Polygon
	if poly == nil {
		// Rectangle geometry (spec.md 3: user-drawn ROIs may be rectangles):
		// area/perimeter follow directly from width/height; the
		// shape-descriptor features below don't apply to an axis-aligned
		// box and are left unset.
		out["area"] = roi.Num(float64(bounds.Width) * float64(bounds.Height))
		out["perimeter"] = roi.Num(2 * float64(bounds.Width+bounds.Height))
		return
	}

	area := roi.AbsArea(*poly)
	perimeter := roi.Perimeter(*poly)
	major, minor := roi.EllipseAxes(*poly)
	maxFeret, minFeret, feretAngle := roi.FeretDiameters(*poly)
	hull := roi.ConvexHull(poly.Vertices)
	hullPoly, err := roi.NewPolygon(hull)
	hullArea := area
	if err == nil {
		hullArea = roi.AbsArea(hullPoly)
	}

	out["area"] = roi.Num(area)
	out["perimeter"] = roi.Num(perimeter)
	out["major_axis"] = roi.Num(major)
	out["minor_axis"] = roi.Num(minor)
	out["feret_max"] = roi.Num(maxFeret)
	out["feret_min"] = roi.Num(minFeret)
	out["feret_angle"] = roi.Num(feretAngle)

	if perimeter > 1e-9 {
		out["circularity"] = roi.Num(clamp01(4 * math.Pi * area / (perimeter * perimeter)))
	} else {
		out["circularity"] = roi.Num(math.NaN())
	}
	if minor > 1e-9 {
		out["aspect_ratio"] = roi.Num(major / minor)
	} else {
		out["aspect_ratio"] = roi.Num(math.NaN())
	}
	if major > 1e-9 {
		out["roundness"] = roi.Num(clamp01(4 * area / (math.Pi * major * major)))
	} else {
		out["roundness"] = roi.Num(math.NaN())
	}
	if hullArea > 1e-9 {
		out["solidity"] = roi.Num(clamp01(area / hullArea))
	} else {
		out["solidity"] = roi.Num(math.NaN())
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// intensity computes per-channel distribution statistics over the pixels
// enclosed by geom (spec.md 4.5: mean, stddev, min, max, median, mode,
// skewness, kurtosis, percentiles).
func intensity(geom roi.Geometry, channels []ChannelSample, wanted []string, sigDigits int, out map[string]roi.FeatureValue) {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[w] = true
	}

	for _, ch := range channels {
		if !want[ch.Name] {
			continue
		}
		samples := rasterize(geom, ch)
		prefix := ch.Name + "_"

		if len(samples) == 0 {
			for _, name := range []string{"mean", "stddev", "min", "max", "median", "mode", "skewness", "kurtosis", "p05", "p95", "integrated_density", "raw_integrated_density"} {
				out[prefix+name] = roi.Num(math.NaN())
			}
			continue
		}

		sorted := append([]float64(nil), samples...)
		sort.Float64s(sorted)

		mean := stat.Mean(samples, nil)
		stddev := stat.StdDev(samples, nil)
		median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
		p05 := stat.Quantile(0.05, stat.Empirical, sorted, nil)
		p95 := stat.Quantile(0.95, stat.Empirical, sorted, nil)

		var skew, kurt float64
		if len(samples) >= 3 && stddev > 1e-12 {
			skew = stat.Skew(samples, nil)
			kurt = stat.ExKurtosis(samples, nil)
		}

		var sum float64
		for _, s := range samples {
			sum += s
		}

		out[prefix+"mean"] = roi.Num(round(mean, sigDigits))
		out[prefix+"stddev"] = roi.Num(round(stddev, sigDigits))
		out[prefix+"min"] = roi.Num(sorted[0])
		out[prefix+"max"] = roi.Num(sorted[len(sorted)-1])
		out[prefix+"median"] = roi.Num(round(median, sigDigits))
		out[prefix+"mode"] = roi.Num(round(histogramMode(samples), sigDigits))
		out[prefix+"skewness"] = roi.Num(round(skew, sigDigits))
		out[prefix+"kurtosis"] = roi.Num(round(kurt, sigDigits))
		out[prefix+"p05"] = roi.Num(round(p05, sigDigits))
		out[prefix+"p95"] = roi.Num(round(p95, sigDigits))
		// integrated_density is the sum of pixel values inside the ROI;
		// raw_integrated_density is ImageJ's area*mean equivalent, which
		// only differs from integrated_density when the pixel count used
		// for area differs from len(samples) (it doesn't here, but the
		// spec names both separately).
		out[prefix+"integrated_density"] = roi.Num(round(sum, sigDigits))
		out[prefix+"raw_integrated_density"] = roi.Num(round(float64(len(samples))*mean, sigDigits))
	}
}

func round(v float64, digits int) float64 {
	if math.IsNaN(v) || digits <= 0 {
		return v
	}
	factor := math.Pow(10, float64(digits))
	return math.Round(v*factor) / factor
}

// histogramMode bins samples into 256 buckets across their observed range
// and returns the bucket center with the highest count (spec.md 4.5
// "mode via 256-bin histogram").
func histogramMode(samples []float64) float64 {
	lo, hi := samples[0], samples[0]
	for _, s := range samples {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	if hi-lo < 1e-12 {
		return lo
	}

	const bins = 256
	counts := make([]int, bins)
	width := (hi - lo) / bins
	for _, s := range samples {
		b := int((s - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		counts[b]++
	}

	best, bestCount := 0, -1
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = i, c
		}
	}
	return lo + (float64(best)+0.5)*width
}

// rasterize lists the intensity samples of ch whose pixel centers fall
// inside geom, scanning only its bounding-box rows for efficiency.
func rasterize(geom roi.Geometry, ch ChannelSample) []float64 {
	bounds := geom.Bounds()
	x0 := clampInt(int(math.Floor(float64(bounds.X))), 0, ch.Width-1)
	x1 := clampInt(int(math.Ceil(float64(bounds.X+bounds.Width))), 0, ch.Width-1)
	y0 := clampInt(int(math.Floor(float64(bounds.Y))), 0, ch.Height-1)
	y1 := clampInt(int(math.Ceil(float64(bounds.Y+bounds.Height))), 0, ch.Height-1)

	var samples []float64
	poly := geom.Polygon
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			pt := roi.Point{X: float32(x) + 0.5, Y: float32(y) + 0.5}
			inside := true
			if poly != nil {
				inside = roi.PointInPolygon(*poly, pt)
			} else if geom.Rectangle != nil {
				inside = geom.Rectangle.Contains(pt)
			}
			if inside {
				samples = append(samples, float64(ch.Pixels[y*ch.Width+x]))
			}
		}
	}
	return samples
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// spatial computes neighbor-density and vessel-proximity features
// (spec.md 4.5): count of other ROI centroids within neighbor_radius,
// the nearest-neighbor distance, and the distance to the nearest vessel
// boundary (0 if inside a vessel).
func spatial(geom roi.Geometry, ctx Context, radius float64, out map[string]roi.FeatureValue) {
	centroid := geom.Centroid()
	out["centroid_x"] = roi.Num(float64(centroid.X))
	out["centroid_y"] = roi.Num(float64(centroid.Y))

	nearest := math.MaxFloat64
	count := 0
	for i, c := range ctx.AllCentroids {
		if i == ctx.SelfIndex {
			continue
		}
		d := math.Hypot(float64(c.X-centroid.X), float64(c.Y-centroid.Y))
		if d < nearest {
			nearest = d
		}
		if d <= radius {
			count++
		}
	}
	if nearest == math.MaxFloat64 {
		nearest = math.NaN()
	}
	out["nearest_neighbor_distance"] = roi.Num(nearest)
	out["neighbor_count"] = roi.Num(float64(count))

	vesselDist := math.MaxFloat64
	vesselIdx := -1
	for i, v := range ctx.Vessels {
		d := roi.DistanceToPolygonBoundary(v, centroid)
		if d < vesselDist {
			vesselDist = d
			vesselIdx = i
		}
	}
	if vesselDist == math.MaxFloat64 {
		vesselDist = math.NaN()
	}
	out["distance_to_nearest_vessel"] = roi.Num(vesselDist)
	out["nearest_vessel_index"] = roi.Num(float64(vesselIdx))
}
