package roi

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path"
	"sort"
)

// recordType mirrors the ImageJ ROI v2 type byte (spec.md 6). Only the
// subset this pipeline produces is named; others round-trip opaquely if
// ever imported.
type recordType uint8

const (
	typePolygon  recordType = 0
	typeRect     recordType = 1
	typeOval     recordType = 2
	typeFreehand recordType = 7
	typePoint    recordType = 10
)

const (
	magic         = "Iout"
	formatVersion = uint16(223) // ImageJ ROI v2 header version
	headerSize    = 64
)

// EncodeROI serializes one ROI to the ImageJ ROI v2 binary record described
// in spec.md 6: fixed-offset header, then x- then y-offset arrays (16-bit,
// big-endian, relative to the bounding box), then a v2 extended block with
// stroke color, stroke width, position, and subpixel float coordinates.
//
// Polygon coordinates are always subpixel (the pipeline's native
// precision), so the float coordinate block is always emitted; consumers
// that only read the legacy integer arrays still get a valid, if rounded,
// shape.
func EncodeROI(r ROI) ([]byte, error) {
	var rt recordType
	var bounds Rectangle
	var verts []Point

	switch {
	case r.Geometry.Rectangle != nil:
		rt = typeRect
		bounds = *r.Geometry.Rectangle
	case r.Geometry.Polygon != nil:
		rt = typePolygon
		if r.Category == Cytoplasm || r.Category == Cell {
			rt = typeFreehand
		}
		bounds = PolygonBounds(*r.Geometry.Polygon)
		verts = r.Geometry.Polygon.Vertices
	default:
		return nil, fmt.Errorf("roi: ROI %d has no geometry", r.ID)
	}

	n := len(verts)
	buf := make([]byte, headerSize+4*n+subpixelBlockSize(n))
	copy(buf[0:4], magic)
	binary.BigEndian.PutUint16(buf[4:6], formatVersion)
	buf[6] = byte(rt)
	// byte 7 reserved/sub-type, left zero.

	top := int16(math.Round(float64(bounds.Y)))
	left := int16(math.Round(float64(bounds.X)))
	bottom := int16(math.Round(float64(bounds.Y + bounds.Height)))
	right := int16(math.Round(float64(bounds.X + bounds.Width)))
	binary.BigEndian.PutUint16(buf[8:10], uint16(top))
	binary.BigEndian.PutUint16(buf[10:12], uint16(left))
	binary.BigEndian.PutUint16(buf[12:14], uint16(bottom))
	binary.BigEndian.PutUint16(buf[14:16], uint16(right))
	binary.BigEndian.PutUint16(buf[16:18], uint16(n))

	off := headerSize
	for _, v := range verts {
		x := int16(math.Round(float64(v.X) - float64(left)))
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(x))
		off += 2
	}
	for _, v := range verts {
		y := int16(math.Round(float64(v.Y) - float64(top)))
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(y))
		off += 2
	}

	// v2 extended header, packed at fixed offsets within [18:headerSize).
	strokeRGBA := categoryColorRGBA(r.Category)
	binary.BigEndian.PutUint32(buf[18:22], strokeRGBA)
	binary.BigEndian.PutUint16(buf[22:24], 1) // stroke width
	binary.BigEndian.PutUint32(buf[24:28], 0) // position (single-plane images)
	buf[28] = byte(r.Category)
	if r.Ignored {
		buf[29] = 1
	}

	// Subpixel float coordinates (x array then y array), 32-bit
	// big-endian, immediately following the integer arrays.
	for _, v := range verts {
		binary.BigEndian.PutUint32(buf[off:off+4], math.Float32bits(v.X))
		off += 4
	}
	for _, v := range verts {
		binary.BigEndian.PutUint32(buf[off:off+4], math.Float32bits(v.Y))
		off += 4
	}

	return buf, nil
}

func subpixelBlockSize(n int) int { return 8 * n }

// categoryColorRGBA returns the category's default display color. A ROI's
// DisplayColor override is not consulted and is not persisted in the
// binary format beyond the category byte; DisplayColor is an in-memory
// convenience for external viewers.
func categoryColorRGBA(c Category) uint32 {
	switch c {
	case Vessel:
		return 0xFF0000FF // red
	case Nucleus:
		return 0x0000FFFF // blue
	case Cytoplasm:
		return 0x00FF00FF // green
	case Cell:
		return 0xFFFF00FF // yellow
	default:
		return 0x808080FF // gray
	}
}

// DecodeROI parses one ImageJ ROI v2 binary record.
func DecodeROI(data []byte) (ROI, error) {
	if len(data) < headerSize {
		return ROI{}, fmt.Errorf("roi: record too short (%d bytes)", len(data))
	}
	if string(data[0:4]) != magic {
		return ROI{}, fmt.Errorf("roi: bad magic %q", data[0:4])
	}
	rt := recordType(data[6])
	top := int16(binary.BigEndian.Uint16(data[8:10]))
	left := int16(binary.BigEndian.Uint16(data[10:12]))
	bottom := int16(binary.BigEndian.Uint16(data[12:14]))
	right := int16(binary.BigEndian.Uint16(data[14:16]))
	n := int(binary.BigEndian.Uint16(data[16:18]))
	category := Category(data[28])
	ignored := data[29] != 0

	bounds := Rectangle{
		X:      float32(left),
		Y:      float32(top),
		Width:  float32(right - left),
		Height: float32(bottom - top),
	}

	if rt == typeRect {
		return ROI{Category: category, Ignored: ignored, Geometry: FromRectangle(bounds)}, nil
	}

	off := headerSize
	need := off + 4*n + subpixelBlockSize(n)
	if len(data) < need {
		return ROI{}, fmt.Errorf("roi: record truncated, need %d have %d", need, len(data))
	}

	xs := make([]int16, n)
	ys := make([]int16, n)
	for i := 0; i < n; i++ {
		xs[i] = int16(binary.BigEndian.Uint16(data[off : off+2]))
		off += 2
	}
	for i := 0; i < n; i++ {
		ys[i] = int16(binary.BigEndian.Uint16(data[off : off+2]))
		off += 2
	}

	verts := make([]Point, n)
	hasSubpixel := len(data) >= off+subpixelBlockSize(n)
	if hasSubpixel {
		fxs := make([]float32, n)
		fys := make([]float32, n)
		for i := 0; i < n; i++ {
			fxs[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4]))
			off += 4
		}
		for i := 0; i < n; i++ {
			fys[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4]))
			off += 4
		}
		for i := range verts {
			verts[i] = Point{X: fxs[i], Y: fys[i]}
		}
	} else {
		for i := range verts {
			verts[i] = Point{X: float32(left) + float32(xs[i]), Y: float32(top) + float32(ys[i])}
		}
	}

	poly, err := NewPolygon(verts)
	if err != nil {
		return ROI{}, err
	}
	return ROI{Category: category, Ignored: ignored, Geometry: FromPolygon(poly)}, nil
}

// entryName builds the deterministic "<image_key>/<roi_name>.roi" path
// used both on export and to locate entries on import, using forward
// slashes regardless of host OS (spec.md 6).
func entryName(imageKey, roiName string) string {
	return path.Join(imageKey, roiName+".roi") //nolint:gocritic // forward slashes required by spec
}

// ExportArchive writes every ROI in the store to w as a standard ZIP
// archive, one binary ROI file per ROI grouped into per-image
// subdirectories, sorted by (image_key, roi id) for determinism so that
// repeated exports of identical input are byte-identical (spec.md 6, 8
// property 4).
func ExportArchive(w io.Writer, store *Store) error {
	zw := zip.NewWriter(w)

	keys := store.ImageKeys()
	for _, key := range keys {
		rois := store.GetAll(key)
		sort.Slice(rois, func(i, j int) bool { return rois[i].ID < rois[j].ID })
		for _, r := range rois {
			data, err := EncodeROI(r)
			if err != nil {
				return fmt.Errorf("roi: encode %s/%d: %w", key, r.ID, err)
			}
			fw, err := zw.CreateHeader(&zip.FileHeader{
				Name:   entryName(key, r.Name),
				Method: zip.Store,
			})
			if err != nil {
				return err
			}
			if _, err := fw.Write(data); err != nil {
				return err
			}
		}
	}

	return zw.Close()
}

// ImportArchive reads a ZIP archive produced by ExportArchive (or a
// compatible ImageJ ROI zip) into store. It is tolerant of nested zips: any
// entry whose own contents are a ZIP archive is recursively expanded
// in-memory (spec.md 6 "tolerant of nested zips").
//
// If forImageKey is non-empty, only entries belonging to that image
// (matched on the directory component) are imported; image_key is
// otherwise taken from each entry's directory.
func ImportArchive(r io.ReaderAt, size int64, store *Store, forImageKey string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("roi: open archive: %w", err)
	}
	return importEntries(zr.File, store, forImageKey)
}

func importEntries(files []*zip.File, store *Store, forImageKey string) error {
	for _, f := range files {
		data, err := readZipFile(f)
		if err != nil {
			return fmt.Errorf("roi: read %s: %w", f.Name, err)
		}

		if looksLikeZip(data) {
			nested, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				return fmt.Errorf("roi: open nested archive %s: %w", f.Name, err)
			}
			if err := importEntries(nested.File, store, forImageKey); err != nil {
				return err
			}
			continue
		}

		if path.Ext(f.Name) != ".roi" {
			continue
		}

		dir := path.Dir(f.Name)
		if dir == "." {
			dir = ""
		}
		if forImageKey != "" && dir != forImageKey {
			continue
		}

		decoded, err := DecodeROI(data)
		if err != nil {
			return fmt.Errorf("roi: decode %s: %w", f.Name, err)
		}
		base := path.Base(f.Name)
		decoded.Name = base[:len(base)-len(path.Ext(base))]
		store.Add(dir, decoded)
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func looksLikeZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && data[2] == 3 && data[3] == 4
}
