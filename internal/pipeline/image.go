package pipeline

import "context"

// BitDepth is the per-channel sample width of a decoded Image.
type BitDepth int

const (
	Depth8  BitDepth = 8
	Depth16 BitDepth = 16
	Depth32Float BitDepth = 32
)

// Image is an immutable decoded pixel buffer (spec.md 3). Pixels are
// stored as float64 regardless of source bit depth, channel-interleaved,
// row-major; ColorDeconvolution and the morphology stages normalize on
// read according to BitDepth.
type Image struct {
	Width, Height int
	Channels      int
	Depth         BitDepth
	PixelSizeUm   float64 // 0 means "unknown"
	Pixels        []float64
}

// At returns the value of one channel at (x, y).
func (img Image) At(x, y, c int) float64 {
	return img.Pixels[(y*img.Width+x)*img.Channels+c]
}

// Set writes the value of one channel at (x, y). Images are treated as
// immutable by every pipeline stage except the component that originally
// decodes them; this exists for test fixture construction.
func (img Image) Set(x, y, c int, v float64) {
	img.Pixels[(y*img.Width+x)*img.Channels+c] = v
}

// NewImage allocates a zeroed Image.
func NewImage(width, height, channels int, depth BitDepth) Image {
	return Image{
		Width: width, Height: height, Channels: channels, Depth: depth,
		Pixels: make([]float64, width*height*channels),
	}
}

// MaxSampleValue returns the maximum representable sample value for the
// image's bit depth, used to normalize into [0,1] / [0,255] as each stage
// requires.
func (img Image) MaxSampleValue() float64 {
	switch img.Depth {
	case Depth16:
		return 65535
	case Depth32Float:
		return 1
	default:
		return 255
	}
}

// ImageReader is the injected collaborator that decodes a raster file into
// an Image (spec.md 1 "out of scope: file-format decoding"). The pipeline
// depends only on this narrow contract.
type ImageReader interface {
	Read(ctx context.Context, path string) (Image, error)
}

// NucleusDetector is the injected star-convex-polygon detector collaborator
// (spec.md 4.3). Polygons are returned in the coordinate space of the tile
// or image passed in, with one probability per polygon.
type NucleusDetector interface {
	Detect(ctx context.Context, tile Image) (polygons []DetectedPolygon, err error)
}

// DetectedPolygon pairs a raw detector polygon with its confidence, before
// NucleusAdapter's threshold/NMS pass.
type DetectedPolygon struct {
	Vertices    []Vertex
	Probability float64
}

// Vertex avoids importing internal/roi from this low-level collaborator
// contract; internal/nucleus converts to roi.Point.
type Vertex struct {
	X, Y float32
}
