package cellbuild

import (
	"math"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

// Cell is one constructed triple of nucleus, cytoplasm, and the union cell
// geometry, along with the link record spec.md 4.4 requires between them.
type Cell struct {
	Nucleus   roi.Polygon
	Cytoplasm roi.Polygon
	CellShape roi.Polygon
	Degenerate bool // true when no valid cytoplasm could be built (spec.md 4.4 edge cases)
}

// Construct builds one Cell per nucleus centroid (spec.md 4.4): a
// Voronoi cell clipped to bounds and capped at max_cytoplasm_radius,
// with vessel polygons excluded when exclude_vessels is set, unioned
// with its seeding nucleus into the final cell shape.
//
// Degenerate cases handled per spec.md 4.4: zero nuclei returns no
// cells; a single nucleus gets the whole (capped) bounds as cytoplasm;
// a nucleus whose centroid itself falls inside a vessel produces a
// Degenerate cell with zero-area cytoplasm rather than panicking.
func Construct(nuclei []roi.Polygon, vessels []roi.Polygon, bounds roi.Rectangle, settings config.CytoplasmSegmentationSettings) []Cell {
	if len(nuclei) == 0 {
		return nil
	}

	seeds := make([]roi.Point, len(nuclei))
	for i, nuc := range nuclei {
		seeds[i] = roi.PolygonCentroid(nuc)
	}

	vesselHulls := make([][]roi.Point, len(vessels))
	for i, v := range vessels {
		vesselHulls[i] = expandHull(roi.ConvexHull(v.Vertices), settings.VesselSafetyMargin)
	}

	cells := make([]Cell, len(nuclei))
	for i := range nuclei {
		raw := voronoiCell(seeds, i, bounds)
		raw = capRadius(raw, seeds[i], settings.MaxCytoplasmRadius)

		if settings.ExcludeVessels {
			raw = excludeVessels(raw, seeds[i], vesselHulls)
		}

		if len(raw) < 3 {
			cells[i] = Cell{Nucleus: nuclei[i], Degenerate: true}
			continue
		}

		cytoplasmPoly, err := roi.NewPolygon(raw)
		if err != nil {
			cells[i] = Cell{Nucleus: nuclei[i], Degenerate: true}
			continue
		}

		cellShape := unionWithNucleus(cytoplasmPoly, nuclei[i])
		cells[i] = Cell{Nucleus: nuclei[i], Cytoplasm: cytoplasmPoly, CellShape: cellShape}
	}
	return cells
}

// expandHull pushes every hull vertex outward from the hull centroid by
// margin, approximating a Minkowski-sum safety buffer around the vessel
// (spec.md 4.4 "vessel_safety_margin") without a general offset-polygon
// routine.
func expandHull(hull []roi.Point, margin float64) []roi.Point {
	if margin <= 0 || len(hull) < 3 {
		return hull
	}
	var cx, cy float64
	for _, p := range hull {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= float64(len(hull))
	cy /= float64(len(hull))

	out := make([]roi.Point, len(hull))
	for i, p := range hull {
		dx, dy := float64(p.X)-cx, float64(p.Y)-cy
		length := dx*dx + dy*dy
		if length < 1e-12 {
			out[i] = p
			continue
		}
		l := math.Sqrt(length)
		out[i] = roi.Point{
			X: p.X + float32(margin*dx/l),
			Y: p.Y + float32(margin*dy/l),
		}
	}
	return out
}

// excludeVessels removes every vessel hull from cell (in sequence), each
// time keeping only the piece of the remainder that still contains seed
// (spec.md 4.4: "the cytoplasm region containing the nucleus survives
// vessel exclusion; disconnected fragments are discarded").
func excludeVessels(cell []roi.Point, seed roi.Point, vesselHulls [][]roi.Point) []roi.Point {
	for _, hull := range vesselHulls {
		if len(cell) == 0 {
			break
		}
		pieces := differenceConvex(cell, hull)
		cell = pieceContaining(pieces, seed)
	}
	return cell
}

func pieceContaining(pieces [][]roi.Point, seed roi.Point) []roi.Point {
	for _, p := range pieces {
		if len(p) < 3 {
			continue
		}
		poly := roi.Polygon{Vertices: p}
		if roi.PointInPolygon(poly, seed) {
			return p
		}
	}
	// seed itself is inside the excluded vessel: no piece contains it.
	return nil
}

// unionWithNucleus returns cytoplasm if it already contains the nucleus
// polygon outright (the common case), or the convex hull of both vertex
// sets otherwise — a documented simplification in place of general
// polygon union, acceptable because cell-shape is only used downstream
// for whole-cell morphology/intensity features, not for further exact
// clipping.
func unionWithNucleus(cytoplasm roi.Polygon, nucleus roi.Polygon) roi.Polygon {
	if roi.ContainsPolygon(cytoplasm, nucleus) {
		return cytoplasm
	}
	combined := append(append([]roi.Point(nil), cytoplasm.Vertices...), nucleus.Vertices...)
	hull := roi.ConvexHull(combined)
	poly, err := roi.NewPolygon(hull)
	if err != nil {
		return cytoplasm
	}
	return poly
}
