package cellbuild

import (
	"testing"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

func squarePoly(t *testing.T, cx, cy, half float32) roi.Polygon {
	t.Helper()
	p, err := roi.NewPolygon([]roi.Point{
		{X: cx - half, Y: cy - half},
		{X: cx + half, Y: cy - half},
		{X: cx + half, Y: cy + half},
		{X: cx - half, Y: cy + half},
	})
	if err != nil {
		t.Fatalf("build fixture polygon: %v", err)
	}
	return p
}

// TestConstructZeroNuclei is spec.md 4.4's zero-seed degenerate case.
func TestConstructZeroNuclei(t *testing.T) {
	bounds := roi.Rectangle{X: 0, Y: 0, Width: 100, Height: 100}
	settings := config.DefaultCytoplasmSegmentationSettings()
	cells := Construct(nil, nil, bounds, settings)
	if len(cells) != 0 {
		t.Fatalf("expected no cells for zero nuclei, got %d", len(cells))
	}
}

// TestConstructSingleNucleusFillsBounds is spec.md 4.4's one-seed
// degenerate case: with no other seeds to bisect against, the cytoplasm
// region is the whole (capped) bounds.
func TestConstructSingleNucleusFillsBounds(t *testing.T) {
	bounds := roi.Rectangle{X: 0, Y: 0, Width: 40, Height: 40}
	nucleus := squarePoly(t, 20, 20, 3)
	settings := config.DefaultCytoplasmSegmentationSettings()
	settings.MaxCytoplasmRadius = 1000 // effectively uncapped within these bounds
	settings.ExcludeVessels = false

	cells := Construct([]roi.Polygon{nucleus}, nil, bounds, settings)
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(cells))
	}
	if cells[0].Degenerate {
		t.Fatal("single-nucleus case should not be degenerate")
	}
	area := roi.AbsArea(cells[0].Cytoplasm)
	if area < 39*39 {
		t.Errorf("expected cytoplasm to cover nearly the whole 40x40 bounds, got area %v", area)
	}
}

func TestConstructTwoNucleiSplitBounds(t *testing.T) {
	bounds := roi.Rectangle{X: 0, Y: 0, Width: 100, Height: 50}
	left := squarePoly(t, 25, 25, 3)
	right := squarePoly(t, 75, 25, 3)
	settings := config.DefaultCytoplasmSegmentationSettings()
	settings.MaxCytoplasmRadius = 1000
	settings.ExcludeVessels = false

	cells := Construct([]roi.Polygon{left, right}, nil, bounds, settings)
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(cells))
	}
	for i, c := range cells {
		if c.Degenerate {
			t.Fatalf("cell %d unexpectedly degenerate", i)
		}
	}
	totalArea := roi.AbsArea(cells[0].Cytoplasm) + roi.AbsArea(cells[1].Cytoplasm)
	boundsArea := float64(bounds.Width) * float64(bounds.Height)
	if totalArea < boundsArea*0.95 || totalArea > boundsArea*1.05 {
		t.Errorf("expected the two Voronoi cells to roughly tile the bounds, got total area %v vs bounds %v", totalArea, boundsArea)
	}
}

// TestConstructExcludesVessel verifies spec.md 4.4's vessel-exclusion
// requirement: cytoplasm area shrinks when a vessel overlaps the Voronoi
// cell, and the nucleus itself stays outside the excluded region.
func TestConstructExcludesVessel(t *testing.T) {
	bounds := roi.Rectangle{X: 0, Y: 0, Width: 100, Height: 100}
	nucleus := squarePoly(t, 20, 50, 3)
	vessel := squarePoly(t, 60, 50, 15) // overlaps the single-seed Voronoi cell on the right side

	settings := config.DefaultCytoplasmSegmentationSettings()
	settings.MaxCytoplasmRadius = 1000
	settings.ExcludeVessels = true

	withoutVessel := Construct([]roi.Polygon{nucleus}, nil, bounds, settings)
	withVessel := Construct([]roi.Polygon{nucleus}, []roi.Polygon{vessel}, bounds, settings)

	if len(withoutVessel) != 1 || len(withVessel) != 1 {
		t.Fatalf("expected 1 cell in each case")
	}
	if withVessel[0].Degenerate {
		t.Fatal("cell should not be degenerate; nucleus is well clear of the vessel")
	}
	if roi.AbsArea(withVessel[0].Cytoplasm) >= roi.AbsArea(withoutVessel[0].Cytoplasm) {
		t.Errorf("expected vessel exclusion to shrink cytoplasm area: with=%v without=%v",
			roi.AbsArea(withVessel[0].Cytoplasm), roi.AbsArea(withoutVessel[0].Cytoplasm))
	}
}

// TestConstructDegenerateWhenSeedInsideVessel covers the case where a
// nucleus centroid itself falls inside an excluded vessel region.
func TestConstructDegenerateWhenSeedInsideVessel(t *testing.T) {
	bounds := roi.Rectangle{X: 0, Y: 0, Width: 100, Height: 100}
	nucleus := squarePoly(t, 50, 50, 3)
	vessel := squarePoly(t, 50, 50, 40) // covers the whole region around the seed

	settings := config.DefaultCytoplasmSegmentationSettings()
	settings.MaxCytoplasmRadius = 1000
	settings.ExcludeVessels = true

	cells := Construct([]roi.Polygon{nucleus}, []roi.Polygon{vessel}, bounds, settings)
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(cells))
	}
	if !cells[0].Degenerate {
		t.Error("expected a degenerate cell when the nucleus sits inside the excluded vessel")
	}
}

func TestConstructCoincidentSeedsDoNotPanic(t *testing.T) {
	bounds := roi.Rectangle{X: 0, Y: 0, Width: 50, Height: 50}
	a := squarePoly(t, 25, 25, 2)
	b := squarePoly(t, 25, 25, 2) // identical centroid, exercises symbolic perturbation
	settings := config.DefaultCytoplasmSegmentationSettings()
	settings.ExcludeVessels = false
	settings.MaxCytoplasmRadius = 1000

	cells := Construct([]roi.Polygon{a, b}, nil, bounds, settings)
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells even with coincident seeds, got %d", len(cells))
	}
}
