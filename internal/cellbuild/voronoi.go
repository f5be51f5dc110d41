// Package cellbuild implements CellConstructor (spec.md 4.4): point-seeded
// Voronoi tessellation of nucleus centroids, clipped to the image bounds
// and capped at a maximum radius, with vessel regions excluded from
// cytoplasm growth. None of the retrieved pack or ecosystem libraries
// expose bounded, vessel-aware Voronoi construction, so the geometry is
// implemented directly as half-plane intersection (Sutherland-Hodgman
// clipping) rather than a full Fortune's sweep: at per-image nucleus
// counts this is fast enough, and it composes directly with the same
// convex-clipping machinery the vessel-exclusion step needs.
package cellbuild

import (
	"math"

	"github.com/sebastianmicu24/scipathj/internal/roi"
)

// halfPlane is the region {p : a*p.X + b*p.Y <= c}.
type halfPlane struct {
	a, b, c float64
}

func (h halfPlane) side(p roi.Point) float64 {
	return h.a*float64(p.X) + h.b*float64(p.Y) - h.c
}

// clipConvex intersects a convex polygon (vertices CCW) with a half-plane
// using Sutherland-Hodgman. The result remains convex and CCW.
func clipConvex(poly []roi.Point, h halfPlane) []roi.Point {
	if len(poly) == 0 {
		return nil
	}
	out := make([]roi.Point, 0, len(poly)+1)
	n := len(poly)
	for i := 0; i < n; i++ {
		cur := poly[i]
		prev := poly[(i-1+n)%n]
		curIn := h.side(cur) <= 1e-9
		prevIn := h.side(prev) <= 1e-9

		if curIn {
			if !prevIn {
				out = append(out, intersect(prev, cur, h))
			}
			out = append(out, cur)
		} else if prevIn {
			out = append(out, intersect(prev, cur, h))
		}
	}
	return out
}

func intersect(a, b roi.Point, h halfPlane) roi.Point {
	da := h.side(a)
	db := h.side(b)
	t := da / (da - db)
	return roi.Point{
		X: a.X + float32(t)*(b.X-a.X),
		Y: a.Y + float32(t)*(b.Y-a.Y),
	}
}

// perpendicularBisector returns the half-plane containing seed (and
// excluding other), i.e. points at least as close to seed as to other.
// A symbolic perturbation nudges `other` when the two seeds coincide, so
// ties between duplicate or collinear seeds never produce a degenerate
// (zero-length) bisector normal.
func perpendicularBisector(seed, other roi.Point, tieBreakIndex int) halfPlane {
	ox, oy := float64(other.X), float64(other.Y)
	if seed == other {
		eps := 1e-3 * float64(tieBreakIndex+1)
		ox += eps
		oy += eps * 0.5
	}
	sx, sy := float64(seed.X), float64(seed.Y)

	mx, my := (sx+ox)/2, (sy+oy)/2
	// Normal pointing from seed toward other; the half-plane a*x+b*y <= c
	// keeps the side containing seed.
	a, b := ox-sx, oy-sy
	c := a*mx + b*my
	return halfPlane{a: a, b: b, c: c}
}

// rectanglePolygon returns a bounding rectangle as a CCW point list.
func rectanglePolygon(r roi.Rectangle) []roi.Point {
	return []roi.Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height},
		{X: r.X, Y: r.Y + r.Height},
	}
}

// voronoiCell computes the Voronoi region of seeds[i] clipped to bounds,
// via sequential half-plane intersection against every other seed
// (spec.md 4.4 step 1). O(n) per cell, O(n^2) total per image, which is
// acceptable at per-image nucleus counts in a batch pipeline.
func voronoiCell(seeds []roi.Point, i int, bounds roi.Rectangle) []roi.Point {
	cell := rectanglePolygon(bounds)
	for j, other := range seeds {
		if j == i {
			continue
		}
		h := perpendicularBisector(seeds[i], other, j)
		cell = clipConvex(cell, h)
		if len(cell) == 0 {
			break
		}
	}
	return cell
}

// capRadius clips a convex cell polygon to a disk of the given radius
// centered at seed, approximated with a 64-gon (spec.md 4.4 step 4),
// implementing the max_cytoplasm_radius setting.
func capRadius(cell []roi.Point, seed roi.Point, radius float64) []roi.Point {
	if radius <= 0 {
		return cell
	}
	disk := roi.RegularPolygonAround(seed, radius, 64).Vertices
	n := len(disk)
	for i := 0; i < n; i++ {
		a := disk[i]
		b := disk[(i+1)%n]
		// Half-plane keeping the side containing seed (interior of disk
		// edge a->b).
		nx, ny := float64(b.Y-a.Y), -float64(b.X-a.X)
		c := nx*float64(a.X) + ny*float64(a.Y)
		if nx*float64(seed.X)+ny*float64(seed.Y) > c {
			nx, ny, c = -nx, -ny, -c
		}
		cell = clipConvex(cell, halfPlane{a: nx, b: ny, c: c})
		if len(cell) == 0 {
			return cell
		}
	}
	return cell
}

// convexArea computes the unsigned area of a convex polygon via the
// shoelace formula.
func convexArea(p []roi.Point) float64 {
	n := len(p)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		a := p[i]
		b := p[(i+1)%n]
		sum += float64(a.X)*float64(b.Y) - float64(b.X)*float64(a.Y)
	}
	return math.Abs(sum / 2)
}

// differenceConvex computes poly \ hull for convex poly and convex hull,
// via successive differencing: clip the remainder by each hull edge's
// outward half-plane to peel off one piece at a time, then shrink the
// remainder to the inward side for the next edge. The returned pieces are
// disjoint convex polygons whose union equals poly \ hull.
func differenceConvex(poly []roi.Point, hull []roi.Point) [][]roi.Point {
	if len(hull) < 3 || len(poly) == 0 {
		return [][]roi.Point{poly}
	}

	var pieces [][]roi.Point
	remaining := poly
	n := len(hull)
	for i := 0; i < n && len(remaining) > 0; i++ {
		a := hull[i]
		b := hull[(i+1)%n]
		// Inward half-plane of this hull edge (hull is CCW, so interior is
		// to the left of a->b).
		inward := halfPlane{a: float64(b.Y) - float64(a.Y), b: -(float64(b.X) - float64(a.X)), c: 0}
		inward.c = inward.a*float64(a.X) + inward.b*float64(a.Y)
		outward := halfPlane{a: -inward.a, b: -inward.b, c: -inward.c}

		piece := clipConvex(remaining, outward)
		if len(piece) >= 3 {
			pieces = append(pieces, piece)
		}
		remaining = clipConvex(remaining, inward)
	}
	return pieces
}
