package features

import (
	"math"
	"testing"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

func rectGeom(t *testing.T, x0, y0, x1, y1 float32) roi.Geometry {
	t.Helper()
	poly, err := roi.NewPolygon([]roi.Point{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	})
	if err != nil {
		t.Fatalf("build fixture polygon: %v", err)
	}
	return roi.FromPolygon(poly)
}

func TestMorphologyOfSquare(t *testing.T) {
	geom := rectGeom(t, 0, 0, 10, 10)
	out := Extract(geom, Context{SelfIndex: -1}, config.FeatureExtractionSettings{
		Groups: []config.FeatureGroup{config.GroupMorphology},
	})

	if got := out["area"].Number; math.Abs(got-100) > 1e-6 {
		t.Errorf("area = %v, want 100", got)
	}
	if got := out["perimeter"].Number; math.Abs(got-40) > 1e-6 {
		t.Errorf("perimeter = %v, want 40", got)
	}
	if got := out["solidity"].Number; math.Abs(got-1) > 1e-6 {
		t.Errorf("square solidity = %v, want ~1", got)
	}
}

func TestIntensityOfConstantChannel(t *testing.T) {
	geom := rectGeom(t, 2, 2, 6, 6)
	pixels := make([]float32, 20*20)
	for i := range pixels {
		pixels[i] = 7
	}
	ctx := Context{
		Channels:  []ChannelSample{{Name: "gray", Width: 20, Height: 20, Pixels: pixels}},
		SelfIndex: -1,
	}
	out := Extract(geom, ctx, config.FeatureExtractionSettings{
		Groups:            []config.FeatureGroup{config.GroupIntensity},
		Channels:          []string{"gray"},
		SignificantDigits: 6,
	})

	if got := out["gray_mean"].Number; math.Abs(got-7) > 1e-6 {
		t.Errorf("gray_mean = %v, want 7", got)
	}
	if got := out["gray_stddev"].Number; got != 0 {
		t.Errorf("gray_stddev = %v, want 0 for a constant channel", got)
	}
}

func TestSpatialNeighborCounting(t *testing.T) {
	geom := rectGeom(t, 0, 0, 2, 2) // centroid (1,1)
	ctx := Context{
		AllCentroids: []roi.Point{{X: 1, Y: 1}, {X: 5, Y: 1}, {X: 100, Y: 100}},
		SelfIndex:    0,
	}
	out := Extract(geom, ctx, config.FeatureExtractionSettings{
		Groups:         []config.FeatureGroup{config.GroupSpatial},
		NeighborRadius: 10,
	})

	if got := out["neighbor_count"].Number; got != 1 {
		t.Errorf("neighbor_count = %v, want 1 (only the (5,1) point is within radius 10)", got)
	}
	if got := out["nearest_neighbor_distance"].Number; math.Abs(got-4) > 1e-6 {
		t.Errorf("nearest_neighbor_distance = %v, want 4", got)
	}
}

func TestIntensityOfConstantChannelIncludesDensityAndPercentiles(t *testing.T) {
	geom := rectGeom(t, 0, 0, 4, 4) // 16 pixel centers inside
	pixels := make([]float32, 10*10)
	for i := range pixels {
		pixels[i] = 2
	}
	ctx := Context{
		Channels:  []ChannelSample{{Name: "gray", Width: 10, Height: 10, Pixels: pixels}},
		SelfIndex: -1,
	}
	out := Extract(geom, ctx, config.FeatureExtractionSettings{
		Groups:            []config.FeatureGroup{config.GroupIntensity},
		Channels:          []string{"gray"},
		SignificantDigits: 6,
	})

	if got := out["gray_p05"].Number; math.Abs(got-2) > 1e-6 {
		t.Errorf("gray_p05 = %v, want 2", got)
	}
	if got := out["gray_p95"].Number; math.Abs(got-2) > 1e-6 {
		t.Errorf("gray_p95 = %v, want 2", got)
	}
	if got := out["gray_integrated_density"].Number; math.Abs(got-32) > 1e-6 {
		t.Errorf("gray_integrated_density = %v, want 32 (16 pixels * 2)", got)
	}
	if got := out["gray_raw_integrated_density"].Number; math.Abs(got-32) > 1e-6 {
		t.Errorf("gray_raw_integrated_density = %v, want 32", got)
	}
}

func TestMorphologyIncludesBoundingBoxOrigin(t *testing.T) {
	geom := rectGeom(t, 3, 4, 13, 14)
	out := Extract(geom, Context{SelfIndex: -1}, config.FeatureExtractionSettings{
		Groups: []config.FeatureGroup{config.GroupMorphology},
	})

	if got := out["bounding_box_x"].Number; math.Abs(got-3) > 1e-6 {
		t.Errorf("bounding_box_x = %v, want 3", got)
	}
	if got := out["bounding_box_y"].Number; math.Abs(got-4) > 1e-6 {
		t.Errorf("bounding_box_y = %v, want 4", got)
	}
}

func TestSpatialIncludesCentroidAndNearestVesselIndex(t *testing.T) {
	geom := rectGeom(t, 0, 0, 2, 2) // centroid (1,1)
	vessel, err := roi.NewPolygon([]roi.Point{{X: 20, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 10}, {X: 20, Y: 10}})
	if err != nil {
		t.Fatalf("build vessel fixture: %v", err)
	}
	farVessel, err := roi.NewPolygon([]roi.Point{{X: 200, Y: 0}, {X: 210, Y: 0}, {X: 210, Y: 10}, {X: 200, Y: 10}})
	if err != nil {
		t.Fatalf("build vessel fixture: %v", err)
	}
	ctx := Context{SelfIndex: -1, Vessels: []roi.Polygon{farVessel, vessel}}

	out := Extract(geom, ctx, config.FeatureExtractionSettings{
		Groups:         []config.FeatureGroup{config.GroupSpatial},
		NeighborRadius: 10,
	})

	if got := out["centroid_x"].Number; math.Abs(got-1) > 1e-6 {
		t.Errorf("centroid_x = %v, want 1", got)
	}
	if got := out["centroid_y"].Number; math.Abs(got-1) > 1e-6 {
		t.Errorf("centroid_y = %v, want 1", got)
	}
	if got := out["nearest_vessel_index"].Number; got != 1 {
		t.Errorf("nearest_vessel_index = %v, want 1 (the closer vessel)", got)
	}
}

func TestIntensityMissingChannelYieldsNaN(t *testing.T) {
	geom := rectGeom(t, 100, 100, 102, 102) // well outside any sampled channel
	ctx := Context{
		Channels:  []ChannelSample{{Name: "gray", Width: 10, Height: 10, Pixels: make([]float32, 100)}},
		SelfIndex: -1,
	}
	out := Extract(geom, ctx, config.FeatureExtractionSettings{
		Groups:            []config.FeatureGroup{config.GroupIntensity},
		Channels:          []string{"gray"},
		SignificantDigits: 6,
	})
	if !math.IsNaN(out["gray_mean"].Number) {
		t.Errorf("expected NaN for an ROI with no pixels in range, got %v", out["gray_mean"].Number)
	}
}
