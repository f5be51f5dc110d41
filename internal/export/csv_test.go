package export

import (
	"strings"
	"testing"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

func rectROI(category roi.Category, name string, features map[string]roi.FeatureValue) roi.ROI {
	return roi.ROI{
		Category: category,
		Name:     name,
		Geometry: roi.FromRectangle(roi.Rectangle{Width: 1, Height: 1}),
		Features: features,
	}
}

func TestWritePerROIReportIncludesFeatureColumns(t *testing.T) {
	store := roi.New()
	store.Add("img1", rectROI(roi.Nucleus, "n0", map[string]roi.FeatureValue{"area": roi.Num(12.5)}))

	var buf strings.Builder
	if err := WritePerROIReport(&buf, store, config.DefaultExportSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "area") {
		t.Errorf("expected header to contain feature name %q, got %q", "area", lines[0])
	}
	if !strings.Contains(lines[1], "12.5") {
		t.Errorf("expected row to contain the feature value, got %q", lines[1])
	}
	if strings.Contains(out, "\r\n") {
		t.Error("expected LF line endings, got CRLF")
	}
}

func TestWritePerROIReportExcludesIgnoredByDefault(t *testing.T) {
	store := roi.New()
	ignored := rectROI(roi.Nucleus, "n0", nil)
	ignored.Ignored = true
	id := store.Add("img1", ignored)
	_ = id

	var buf strings.Builder
	if err := WritePerROIReport(&buf, store, config.DefaultExportSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the header row with the ignored ROI excluded, got %d lines", len(lines))
	}
}

func TestWritePerROIReportEUFormatUsesSemicolonAndComma(t *testing.T) {
	store := roi.New()
	store.Add("img1", rectROI(roi.Nucleus, "n0", map[string]roi.FeatureValue{"area": roi.Num(12.5)}))

	settings := config.DefaultExportSettings()
	settings.Format = config.CSVFormatEU

	var buf strings.Builder
	if err := WritePerROIReport(&buf, store, settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "12,5") {
		t.Errorf("expected EU decimal comma in output, got %q", out)
	}
	if !strings.Contains(out, ";") {
		t.Errorf("expected semicolon separators in EU output, got %q", out)
	}
}

func TestWritePerImageSummaryReportAggregatesPerCategory(t *testing.T) {
	store := roi.New()
	store.Add("img1", rectROI(roi.Nucleus, "n0", map[string]roi.FeatureValue{"area": roi.Num(10)}))
	store.Add("img1", rectROI(roi.Nucleus, "n1", map[string]roi.FeatureValue{"area": roi.Num(20)}))

	var buf strings.Builder
	if err := WritePerImageSummaryReport(&buf, store, config.DefaultExportSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "nucleus_count") || !strings.Contains(lines[0], "nucleus_area_mean") {
		t.Errorf("expected count and mean columns, got header %q", lines[0])
	}
	if !strings.Contains(lines[1], "15") {
		t.Errorf("expected mean area 15 in row, got %q", lines[1])
	}
}
