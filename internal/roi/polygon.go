package roi

import (
	"math"
	"sort"
)

// PolygonArea returns the signed area via the shoelace formula. Positive
// for counter-clockwise winding (our convention), negative otherwise.
func PolygonArea(p Polygon) float64 {
	n := len(p.Vertices)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		a := p.Vertices[i]
		b := p.Vertices[(i+1)%n]
		sum += float64(a.X)*float64(b.Y) - float64(b.X)*float64(a.Y)
	}
	return sum / 2
}

// AbsArea is the unsigned polygon area.
func AbsArea(p Polygon) float64 {
	return math.Abs(PolygonArea(p))
}

// Perimeter returns the sum of edge lengths.
func Perimeter(p Polygon) float64 {
	n := len(p.Vertices)
	sum := 0.0
	for i := 0; i < n; i++ {
		a := p.Vertices[i]
		b := p.Vertices[(i+1)%n]
		dx := float64(b.X - a.X)
		dy := float64(b.Y - a.Y)
		sum += math.Hypot(dx, dy)
	}
	return sum
}

// PolygonCentroid returns the area-weighted centroid. Falls back to the
// vertex average for degenerate (zero-area) polygons.
func PolygonCentroid(p Polygon) Point {
	area := PolygonArea(p)
	n := len(p.Vertices)
	if math.Abs(area) < 1e-12 {
		var sx, sy float64
		for _, v := range p.Vertices {
			sx += float64(v.X)
			sy += float64(v.Y)
		}
		if n == 0 {
			return Point{}
		}
		return Point{X: float32(sx / float64(n)), Y: float32(sy / float64(n))}
	}

	var cx, cy float64
	for i := 0; i < n; i++ {
		a := p.Vertices[i]
		b := p.Vertices[(i+1)%n]
		cross := float64(a.X)*float64(b.Y) - float64(b.X)*float64(a.Y)
		cx += (float64(a.X) + float64(b.X)) * cross
		cy += (float64(a.Y) + float64(b.Y)) * cross
	}
	factor := 1 / (6 * area)
	return Point{X: float32(cx * factor), Y: float32(cy * factor)}
}

// PolygonBounds returns the axis-aligned bounding box.
func PolygonBounds(p Polygon) Rectangle {
	if len(p.Vertices) == 0 {
		return Rectangle{}
	}
	minX, minY := p.Vertices[0].X, p.Vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range p.Vertices[1:] {
		minX = min32(minX, v.X)
		minY = min32(minY, v.Y)
		maxX = max32(maxX, v.X)
		maxY = max32(maxY, v.Y)
	}
	return Rectangle{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// PointInPolygon reports whether p lies inside poly using the standard
// ray-casting test. Points exactly on an edge are treated as inside.
func PointInPolygon(poly Polygon, pt Point) bool {
	n := len(poly.Vertices)
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := poly.Vertices[i], poly.Vertices[j]
		if onSegment(vi, vj, pt) {
			return true
		}
		if (vi.Y > pt.Y) != (vj.Y > pt.Y) {
			xIntersect := vj.X + (pt.Y-vj.Y)*(vi.X-vj.X)/(vi.Y-vj.Y)
			if pt.X < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(a, b, p Point) bool {
	cross := (float64(p.Y)-float64(a.Y))*(float64(b.X)-float64(a.X)) - (float64(p.X)-float64(a.X))*(float64(b.Y)-float64(a.Y))
	if math.Abs(cross) > 1e-6 {
		return false
	}
	if float64(p.X) < math.Min(float64(a.X), float64(b.X))-1e-6 || float64(p.X) > math.Max(float64(a.X), float64(b.X))+1e-6 {
		return false
	}
	if float64(p.Y) < math.Min(float64(a.Y), float64(b.Y))-1e-6 || float64(p.Y) > math.Max(float64(a.Y), float64(b.Y))+1e-6 {
		return false
	}
	return true
}

// ContainsPolygon reports whether every vertex of inner lies within outer,
// within tolerance. internal/cellbuild uses it to check whether a
// cytoplasm polygon already contains its whole nucleus.
func ContainsPolygon(outer, inner Polygon) bool {
	for _, v := range inner.Vertices {
		if !PointInPolygon(outer, v) {
			return false
		}
	}
	return true
}

// ConvexHull computes the convex hull of a point set using the monotone
// chain algorithm, returning vertices in counter-clockwise order.
func ConvexHull(points []Point) []Point {
	pts := append([]Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	pts = dedupe(pts)
	n := len(pts)
	if n < 3 {
		return pts
	}

	cross := func(o, a, b Point) float64 {
		return float64(a.X-o.X)*float64(b.Y-o.Y) - float64(a.Y-o.Y)*float64(b.X-o.X)
	}

	lower := make([]Point, 0, n)
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	upper := make([]Point, 0, n)
	for i := n - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

func dedupe(pts []Point) []Point {
	out := pts[:0]
	for i, p := range pts {
		if i == 0 || p != pts[i-1] {
			out = append(out, p)
		}
	}
	return out
}

// FeretDiameters returns the maximum ("Feret") and minimum caliper
// diameters of a polygon's convex hull and the angle (degrees, 0-180) of
// the maximum diameter, measured from the positive X axis.
func FeretDiameters(p Polygon) (maxFeret, minFeret, angleDeg float64) {
	hull := ConvexHull(p.Vertices)
	n := len(hull)
	if n < 2 {
		return 0, 0, 0
	}
	if n == 2 {
		d := dist(hull[0], hull[1])
		return d, d, angle(hull[0], hull[1])
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := dist(hull[i], hull[j])
			if d > maxFeret {
				maxFeret = d
				angleDeg = angle(hull[i], hull[j])
			}
		}
	}

	// Minimum caliper width via rotating calipers over hull edges: for each
	// edge direction, project all vertices and take the perpendicular
	// extent; the minimum over all edges approximates min-Feret.
	minFeret = math.MaxFloat64
	for i := 0; i < n; i++ {
		a, b := hull[i], hull[(i+1)%n]
		dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
		length := math.Hypot(dx, dy)
		if length < 1e-9 {
			continue
		}
		nx, ny := -dy/length, dx/length
		minP, maxP := math.MaxFloat64, -math.MaxFloat64
		for _, v := range hull {
			proj := float64(v.X)*nx + float64(v.Y)*ny
			if proj < minP {
				minP = proj
			}
			if proj > maxP {
				maxP = proj
			}
		}
		width := maxP - minP
		if width < minFeret {
			minFeret = width
		}
	}
	if minFeret == math.MaxFloat64 {
		minFeret = 0
	}

	if angleDeg < 0 {
		angleDeg += 180
	}
	for angleDeg >= 180 {
		angleDeg -= 180
	}
	return maxFeret, minFeret, angleDeg
}

func dist(a, b Point) float64 {
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}

func angle(a, b Point) float64 {
	return math.Atan2(float64(b.Y-a.Y), float64(b.X-a.X)) * 180 / math.Pi
}

// EllipseAxes fits the best-matching ellipse by second moments and returns
// (major, minor) axis lengths, used for the major/minor-axis and
// aspect-ratio features.
func EllipseAxes(p Polygon) (major, minor float64) {
	area := AbsArea(p)
	if area < 1e-9 {
		return 0, 0
	}
	c := PolygonCentroid(p)
	var mxx, myy, mxy float64
	n := len(p.Vertices)
	for i := 0; i < n; i++ {
		a := p.Vertices[i]
		b := p.Vertices[(i+1)%n]
		cross := float64(a.X)*float64(b.Y) - float64(b.X)*float64(a.Y)
		ax, ay := float64(a.X)-float64(c.X), float64(a.Y)-float64(c.Y)
		bx, by := float64(b.X)-float64(c.X), float64(b.Y)-float64(c.Y)
		mxx += (ax*ax + ax*bx + bx*bx) * cross
		myy += (ay*ay + ay*by + by*by) * cross
		mxy += (ax*by + 2*ax*ay + 2*bx*by + bx*ay) * cross
	}
	mxx /= 12 * area
	myy /= 12 * area
	mxy /= 24 * area

	common := math.Sqrt(math.Max(0, (mxx-myy)*(mxx-myy)+4*mxy*mxy))
	lambda1 := (mxx + myy + common) / 2
	lambda2 := (mxx + myy - common) / 2
	major = 4 * math.Sqrt(math.Max(0, lambda1))
	minor = 4 * math.Sqrt(math.Max(0, lambda2))
	return major, minor
}

// DistanceToPolygonBoundary returns the minimum Euclidean distance from pt
// to any edge of poly, or 0 if pt is inside poly.
func DistanceToPolygonBoundary(poly Polygon, pt Point) float64 {
	if PointInPolygon(poly, pt) {
		return 0
	}
	n := len(poly.Vertices)
	best := math.MaxFloat64
	for i := 0; i < n; i++ {
		a := poly.Vertices[i]
		b := poly.Vertices[(i+1)%n]
		d := distancePointSegment(pt, a, b)
		if d < best {
			best = d
		}
	}
	return best
}

func distancePointSegment(p, a, b Point) float64 {
	ax, ay := float64(a.X), float64(a.Y)
	bx, by := float64(b.X), float64(b.Y)
	px, py := float64(p.X), float64(p.Y)

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq < 1e-12 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	projX, projY := ax+t*dx, ay+t*dy
	return math.Hypot(px-projX, py-projY)
}

// RegularPolygonAround approximates a disk of the given radius centered at
// c with an n-gon, used to cap cytoplasm polygons (spec.md 4.4 step 4
// specifies a 64-gon).
func RegularPolygonAround(c Point, radius float64, n int) Polygon {
	verts := make([]Point, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		verts[i] = Point{
			X: c.X + float32(radius*math.Cos(theta)),
			Y: c.Y + float32(radius*math.Sin(theta)),
		}
	}
	return Polygon{Vertices: verts}
}
