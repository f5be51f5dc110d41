// Package roi defines the Region Of Interest data model shared by every
// pipeline stage: polygons and rectangles, the tagged ROI record, and the
// category enumeration that replaces the inheritance hierarchy of the
// original tool (NucleusROI/CytoplasmROI/CellROI/UserROI subclasses).
package roi

import "fmt"

// Category tags the kind of structure an ROI represents. An ROI's category
// is fixed at construction time.
type Category uint8

const (
	Vessel Category = iota
	Nucleus
	Cytoplasm
	Cell
	Ignore
)

func (c Category) String() string {
	switch c {
	case Vessel:
		return "VESSEL"
	case Nucleus:
		return "NUCLEUS"
	case Cytoplasm:
		return "CYTOPLASM"
	case Cell:
		return "CELL"
	case Ignore:
		return "IGNORE"
	default:
		return fmt.Sprintf("CATEGORY(%d)", uint8(c))
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "VESSEL":
		return Vessel, nil
	case "NUCLEUS":
		return Nucleus, nil
	case "CYTOPLASM":
		return Cytoplasm, nil
	case "CELL":
		return Cell, nil
	case "IGNORE":
		return Ignore, nil
	default:
		return 0, fmt.Errorf("roi: unknown category %q", s)
	}
}

// Point is a single 2-D, subpixel-precision pixel coordinate.
type Point struct {
	X, Y float32
}

// Polygon is an ordered, implicitly-closed sequence of vertices. By
// convention vertices are stored in counter-clockwise winding order in
// image coordinates (Y axis pointing down), matching the orientation
// produced by Moore-Neighbor contour tracing in internal/vessel.
type Polygon struct {
	Vertices []Point
}

// NewPolygon validates and returns a Polygon. An input with fewer than 3
// vertices is rejected; self-intersection is not checked here (callers that
// construct polygons algorithmically, e.g. Voronoi clipping, are expected to
// maintain that invariant by construction).
func NewPolygon(vertices []Point) (Polygon, error) {
	if len(vertices) < 3 {
		return Polygon{}, fmt.Errorf("roi: polygon needs >= 3 vertices, got %d", len(vertices))
	}
	out := make([]Point, len(vertices))
	copy(out, vertices)
	return Polygon{Vertices: out}, nil
}

// Rectangle is an axis-aligned bounding region, used for simple ROI
// geometries and as the image/cap bounds passed through the pipeline.
type Rectangle struct {
	X, Y, Width, Height float32
}

func (r Rectangle) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Geometry holds exactly one of Polygon or Rectangle, mirroring the
// spec's "either a Polygon or a Rectangle" union without introducing an
// interface-based class hierarchy.
type Geometry struct {
	Polygon   *Polygon
	Rectangle *Rectangle
}

func FromPolygon(p Polygon) Geometry   { return Geometry{Polygon: &p} }
func FromRectangle(r Rectangle) Geometry { return Geometry{Rectangle: &r} }

// Bounds returns the axis-aligned bounding box of the geometry.
func (g Geometry) Bounds() Rectangle {
	if g.Rectangle != nil {
		return *g.Rectangle
	}
	return PolygonBounds(*g.Polygon)
}

// Centroid returns the area-weighted centroid for a polygon, or the
// rectangle center.
func (g Geometry) Centroid() Point {
	if g.Rectangle != nil {
		r := *g.Rectangle
		return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
	}
	return PolygonCentroid(*g.Polygon)
}

// CellLinks records, for a CELL ROI, the ids of its paired nucleus and
// cytoplasm ROIs within the same image.
type CellLinks struct {
	NucleusID   int
	CytoplasmID int
}

// Classification is the output of internal/classify for one ROI.
type Classification struct {
	PredictedClass string
	Probabilities  map[string]float64
}

// FeatureValue is a tagged union over the float/string feature values the
// spec allows (spec.md 3 "mapping from feature-name to value (float or
// string)").
type FeatureValue struct {
	IsString bool
	Number   float64
	Text     string
}

func Num(v float64) FeatureValue   { return FeatureValue{Number: v} }
func Str(v string) FeatureValue    { return FeatureValue{IsString: true, Text: v} }

// ROI is the central entity of the pipeline. Everything but Ignored,
// Features and Classification is immutable after construction; those three
// fields are set at most once, after construction, by the store.
type ROI struct {
	ID         int
	ImageKey   string
	Name       string
	Category   Category
	Geometry   Geometry
	Ignored    bool
	DisplayColor string // empty means "use category default"
	Links      *CellLinks // non-nil only for Category == Cell

	Features       map[string]FeatureValue
	Classification *Classification
}

// WithFeatures returns a copy of the ROI carrying the given feature map.
// The store uses this to implement "set once" semantics without exposing
// mutable setters on ROI itself.
func (r ROI) WithFeatures(f map[string]FeatureValue) ROI {
	r.Features = f
	return r
}

// WithClassification returns a copy of the ROI carrying a classification.
func (r ROI) WithClassification(c Classification) ROI {
	r.Classification = &c
	return r
}

// WithIgnored returns a copy of the ROI with Ignored set.
func (r ROI) WithIgnored(ignored bool) ROI {
	r.Ignored = ignored
	return r
}
