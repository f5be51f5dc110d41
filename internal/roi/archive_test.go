package roi

import (
	"archive/zip"
	"bytes"
	"math"
	"testing"
)

func makePolygonROI(name string, category Category, n int) ROI {
	verts := make([]Point, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		verts[i] = Point{X: float32(50 + 10*math.Cos(angle)), Y: float32(50 + 10*math.Sin(angle))}
	}
	poly, _ := NewPolygon(verts)
	return ROI{Name: name, Category: category, Geometry: FromPolygon(poly)}
}

func TestROIEncodeDecodeRoundTrip(t *testing.T) {
	original := makePolygonROI("slide1_NUCLEUS_0", Nucleus, 12)
	original.Ignored = true

	data, err := EncodeROI(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeROI(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Category != original.Category {
		t.Fatalf("category mismatch: got %v want %v", decoded.Category, original.Category)
	}
	if decoded.Ignored != original.Ignored {
		t.Fatalf("ignored mismatch")
	}
	if len(decoded.Geometry.Polygon.Vertices) != len(original.Geometry.Polygon.Vertices) {
		t.Fatalf("vertex count mismatch")
	}
	for i, v := range original.Geometry.Polygon.Vertices {
		got := decoded.Geometry.Polygon.Vertices[i]
		if absf(float64(got.X-v.X)) > 1e-3 || absf(float64(got.Y-v.Y)) > 1e-3 {
			t.Fatalf("vertex %d mismatch: got %v want %v", i, got, v)
		}
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestArchiveExportImportRoundTrip(t *testing.T) {
	store := New()
	store.Add("sample_a", makePolygonROI("sample_a_VESSEL_0", Vessel, 6))
	store.Add("sample_a", makePolygonROI("sample_a_NUCLEUS_0", Nucleus, 1000))
	store.Add("sample_b", makePolygonROI("sample_b_CELL_0", Cell, 30))

	var buf1 bytes.Buffer
	if err := ExportArchive(&buf1, store); err != nil {
		t.Fatalf("export: %v", err)
	}

	imported := New()
	if err := ImportArchive(bytes.NewReader(buf1.Bytes()), int64(buf1.Len()), imported, ""); err != nil {
		t.Fatalf("import: %v", err)
	}

	var buf2 bytes.Buffer
	if err := ExportArchive(&buf2, imported); err != nil {
		t.Fatalf("re-export: %v", err)
	}

	if !bytes.Equal(buf1.Bytes(), buf2.Bytes()) {
		t.Fatalf("archive bytes not identical after round trip: %d vs %d bytes", buf1.Len(), buf2.Len())
	}

	for _, key := range []string{"sample_a", "sample_b"} {
		if got, want := len(imported.GetAll(key)), len(store.GetAll(key)); got != want {
			t.Fatalf("image %s: got %d ROIs want %d", key, got, want)
		}
	}
}

func TestImportTolerantOfNestedZips(t *testing.T) {
	inner := New()
	inner.Add("nested", makePolygonROI("nested_NUCLEUS_0", Nucleus, 4))
	var innerBuf bytes.Buffer
	if err := ExportArchive(&innerBuf, inner); err != nil {
		t.Fatalf("export inner: %v", err)
	}

	// Wrap the inner zip bytes inside an outer zip entry.
	outer := new(bytes.Buffer)
	zw := zip.NewWriter(outer)
	w, err := zw.Create("batch-1.zip")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write(innerBuf.Bytes()); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	dest := New()
	if err := ImportArchive(bytes.NewReader(outer.Bytes()), int64(outer.Len()), dest, ""); err != nil {
		t.Fatalf("import nested: %v", err)
	}
	if got := len(dest.GetAll("nested")); got != 1 {
		t.Fatalf("expected 1 ROI recovered from nested zip, got %d", got)
	}
}
