// Package vessel implements VesselSegmenter (spec.md 4.2): adaptive
// thresholding, morphological closing and hole-filling, connected-component
// labeling, and Moore-Neighbor contour tracing, all pure computational
// geometry over a deconvolved channel — no third-party image library in
// the retrieved pack addresses this combination (connected-component
// labeling plus circular-structuring-element morphology plus contour
// tracing tuned to this category/threshold semantics), so it is
// implemented directly, following the loop-and-slice style of the
// teacher's own CPU-bound sync/engine.go file-walking code.
package vessel

import (
	"sort"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/deconv"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

// Result is one segmented vessel: its contour polygon, its pixel area, and
// whether it touches the image border.
type Result struct {
	Polygon     roi.Polygon
	Area        float64
	TouchesBorder bool
}

// Segment runs the full VesselSegmenter pipeline over one deconvolved
// image and returns polygons in descending area order (spec.md 4.2 step
// 6), annotated with whether each touches the image border.
func Segment(channels deconv.Channels, settings config.VesselSegmentationSettings) []Result {
	mask := threshold(channels, settings)
	mask = close_(mask, channels.Width, channels.Height, settings.ClosingRadius)
	fillHoles(mask, channels.Width, channels.Height)

	labels, numLabels := labelComponents(mask, channels.Width, channels.Height)

	results := make([]Result, 0, numLabels)
	for label := 1; label <= numLabels; label++ {
		pixels := componentPixels(labels, channels.Width, channels.Height, label)
		area := float64(len(pixels))
		if area < settings.MinArea || area > settings.MaxArea {
			continue
		}

		contour := traceContour(mask, channels.Width, channels.Height, pixels)
		if len(contour) < 3 {
			continue
		}
		poly, err := roi.NewPolygon(contour)
		if err != nil {
			continue
		}

		results = append(results, Result{
			Polygon:       poly,
			Area:          area,
			TouchesBorder: touchesBorder(pixels, channels.Width, channels.Height),
		})
	}

	sortResults(results)
	return results
}

// threshold implements spec.md 4.2 step 2: a pixel is vessel-foreground
// when the configured channel's optical density meets or exceeds
// threshold. A genuinely blank field (no absorption in any channel, OD
// near zero everywhere) therefore never registers as a vessel regardless
// of which channel is selected.
func threshold(channels deconv.Channels, settings config.VesselSegmentationSettings) []bool {
	n := channels.Width * channels.Height
	mask := make([]bool, n)
	t := settings.Threshold

	var source []float32
	switch settings.Channel {
	case config.ChannelHematoxylin:
		source = channels.Hematoxylin
	case config.ChannelEosin:
		source = channels.Eosin
	default:
		source = channels.Background
	}
	for i, v := range source {
		mask[i] = float64(v) >= t
	}
	return mask
}

// close_ performs morphological closing (dilation then erosion) with a
// circular structuring element of the given radius.
func close_(mask []bool, w, h, radius int) []bool {
	if radius <= 0 {
		return mask
	}
	offsets := diskOffsets(radius)
	dilated := morph(mask, w, h, offsets, true)
	closed := morph(dilated, w, h, offsets, false)
	return closed
}

func diskOffsets(radius int) [][2]int {
	var offsets [][2]int
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return offsets
}

// morph applies either dilation (dilate=true, pixel set if any neighbor in
// the structuring element is set) or erosion (dilate=false, pixel set only
// if all neighbors are set).
func morph(mask []bool, w, h int, offsets [][2]int, dilate bool) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if dilate {
				set := false
				for _, o := range offsets {
					nx, ny := x+o[0], y+o[1]
					if nx >= 0 && nx < w && ny >= 0 && ny < h && mask[ny*w+nx] {
						set = true
						break
					}
				}
				out[y*w+x] = set
			} else {
				set := true
				for _, o := range offsets {
					nx, ny := x+o[0], y+o[1]
					if nx < 0 || nx >= w || ny < 0 || ny >= h || !mask[ny*w+nx] {
						set = false
						break
					}
				}
				out[y*w+x] = set
			}
		}
	}
	return out
}

// fillHoles floods the background from the image border and flips any
// unreached background pixel to foreground, in place.
func fillHoles(mask []bool, w, h int) {
	reached := make([]bool, len(mask))
	var stack [][2]int
	for x := 0; x < w; x++ {
		pushIfBackground(mask, reached, w, h, x, 0, &stack)
		pushIfBackground(mask, reached, w, h, x, h-1, &stack)
	}
	for y := 0; y < h; y++ {
		pushIfBackground(mask, reached, w, h, 0, y, &stack)
		pushIfBackground(mask, reached, w, h, w-1, y, &stack)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p[0], p[1]
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			pushIfBackground(mask, reached, w, h, x+d[0], y+d[1], &stack)
		}
	}

	for i := range mask {
		if !mask[i] && !reached[i] {
			mask[i] = true
		}
	}
}

func pushIfBackground(mask, reached []bool, w, h, x, y int, stack *[][2]int) {
	if x < 0 || x >= w || y < 0 || y >= h {
		return
	}
	idx := y*w + x
	if mask[idx] || reached[idx] {
		return
	}
	reached[idx] = true
	*stack = append(*stack, [2]int{x, y})
}

// labelComponents performs 8-connected connected-component labeling via
// flood fill, returning a label image (0 = background) and the count of
// labels assigned.
func labelComponents(mask []bool, w, h int) ([]int, int) {
	labels := make([]int, len(mask))
	next := 0
	var stack [][2]int

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !mask[idx] || labels[idx] != 0 {
				continue
			}
			next++
			labels[idx] = next
			stack = append(stack, [2]int{x, y})

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := p[0], p[1]
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := px+dx, py+dy
						if nx < 0 || nx >= w || ny < 0 || ny >= h {
							continue
						}
						nIdx := ny*w + nx
						if mask[nIdx] && labels[nIdx] == 0 {
							labels[nIdx] = next
							stack = append(stack, [2]int{nx, ny})
						}
					}
				}
			}
		}
	}
	return labels, next
}

func componentPixels(labels []int, w, h, label int) [][2]int {
	var pixels [][2]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if labels[y*w+x] == label {
				pixels = append(pixels, [2]int{x, y})
			}
		}
	}
	return pixels
}

func touchesBorder(pixels [][2]int, w, h int) bool {
	for _, p := range pixels {
		if p[0] == 0 || p[0] == w-1 || p[1] == 0 || p[1] == h-1 {
			return true
		}
	}
	return false
}

// traceContour walks the outer boundary of a connected component with the
// Moore-Neighbor algorithm, starting at its topmost-leftmost pixel, and
// returns the boundary in counter-clockwise order.
func traceContour(mask []bool, w, h int, pixels [][2]int) []roi.Point {
	if len(pixels) == 0 {
		return nil
	}
	start := pixels[0]
	for _, p := range pixels[1:] {
		if p[1] < start[1] || (p[1] == start[1] && p[0] < start[0]) {
			start = p
		}
	}

	// Clockwise neighbor offsets starting "west" so the first step from a
	// topmost-leftmost pixel moves along the outer boundary.
	dirs := [8][2]int{{-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}}

	inMask := func(x, y int) bool {
		return x >= 0 && x < w && y >= 0 && y < h && mask[y*w+x]
	}

	var contour []roi.Point
	current := start
	backtrack := 0 // direction we arrived from; search begins just after it
	first := true

	for {
		contour = append(contour, roi.Point{X: float32(current[0]), Y: float32(current[1])})

		found := false
		for i := 0; i < 8; i++ {
			dirIdx := (backtrack + 1 + i) % 8
			nx, ny := current[0]+dirs[dirIdx][0], current[1]+dirs[dirIdx][1]
			if inMask(nx, ny) {
				backtrack = (dirIdx + 4) % 8
				current = [2]int{nx, ny}
				found = true
				break
			}
		}
		if !found {
			break // isolated pixel
		}
		if current == start && !first {
			break
		}
		first = false
		if len(contour) > w*h*2 {
			break // safety valve against pathological masks
		}
	}

	return contour
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Area != results[j].Area {
			return results[i].Area > results[j].Area
		}
		ci := roi.PolygonCentroid(results[i].Polygon)
		cj := roi.PolygonCentroid(results[j].Polygon)
		if ci.Y != cj.Y {
			return ci.Y < cj.Y
		}
		return ci.X < cj.X
	})
}
