// Package export writes the two CSV reports spec.md 6 requires — a
// per-ROI table and a per-image summary — in the teacher's
// no-dependency-for-a-thin-format style: CSV writing uses only the
// standard library's encoding/csv (see DESIGN.md for why no pack library
// covers locale-aware CSV any better than a thin wrapper would).
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

var reportCategories = []roi.Category{roi.Vessel, roi.Nucleus, roi.Cytoplasm, roi.Cell}

func separator(format config.CSVFormat) rune {
	if format == config.CSVFormatEU {
		return ';'
	}
	return ','
}

// formatFloat renders v per the US/EU decimal convention (spec.md 6).
func formatFloat(v float64, format config.CSVFormat) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if format == config.CSVFormatEU {
		s = strings.ReplaceAll(s, ".", ",")
	}
	return s
}

func includeROI(r roi.ROI, settings config.ExportSettings) bool {
	return settings.IncludeIgnored || !r.Ignored
}

// WritePerROIReport writes one row per ROI: image, category, roi_id, every
// feature name seen across the store (sorted, blank when not applicable to
// that ROI's category), predicted_class, confidence (spec.md 6).
func WritePerROIReport(w io.Writer, store *roi.Store, settings config.ExportSettings) error {
	featureNames := collectFeatureNames(store, settings)

	cw := csv.NewWriter(w)
	cw.Comma = separator(settings.Format)

	header := append([]string{"image", "category", "roi_id"}, featureNames...)
	header = append(header, "predicted_class", "confidence")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, key := range store.ImageKeys() {
		for _, r := range store.GetAll(key) {
			if !includeROI(r, settings) {
				continue
			}
			row := make([]string, 0, len(header))
			row = append(row, key, r.Category.String(), strconv.Itoa(r.ID))
			for _, name := range featureNames {
				v, ok := r.Features[name]
				if !ok {
					row = append(row, "")
					continue
				}
				row = append(row, formatFeature(v, settings.Format))
			}
			class, confidence := "", ""
			if r.Classification != nil {
				class = r.Classification.PredictedClass
				if p, ok := r.Classification.Probabilities[class]; ok {
					confidence = formatFloat(p, settings.Format)
				}
			}
			row = append(row, class, confidence)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFeature(v roi.FeatureValue, format config.CSVFormat) string {
	if v.IsString {
		return v.Text
	}
	return formatFloat(v.Number, format)
}

func collectFeatureNames(store *roi.Store, settings config.ExportSettings) []string {
	seen := make(map[string]bool)
	for _, key := range store.ImageKeys() {
		for _, r := range store.GetAll(key) {
			if !includeROI(r, settings) {
				continue
			}
			for name := range r.Features {
				seen[name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WritePerImageSummaryReport writes one row per image: counts per
// category, plus the mean and median of every numeric feature, per
// category (spec.md 6).
func WritePerImageSummaryReport(w io.Writer, store *roi.Store, settings config.ExportSettings) error {
	featuresByCategory := collectFeatureNamesByCategory(store, settings)

	cw := csv.NewWriter(w)
	cw.Comma = separator(settings.Format)

	header := []string{"image"}
	for _, cat := range reportCategories {
		header = append(header, strings.ToLower(cat.String())+"_count")
		for _, name := range featuresByCategory[cat] {
			header = append(header, fmt.Sprintf("%s_%s_mean", strings.ToLower(cat.String()), name))
			header = append(header, fmt.Sprintf("%s_%s_median", strings.ToLower(cat.String()), name))
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, key := range store.ImageKeys() {
		row := []string{key}
		byCat := make(map[roi.Category][]roi.ROI)
		for _, r := range store.GetAll(key) {
			if !includeROI(r, settings) {
				continue
			}
			byCat[r.Category] = append(byCat[r.Category], r)
		}

		for _, cat := range reportCategories {
			rois := byCat[cat]
			row = append(row, strconv.Itoa(len(rois)))
			for _, name := range featuresByCategory[cat] {
				values := numericValues(rois, name)
				if len(values) == 0 {
					row = append(row, "", "")
					continue
				}
				sort.Float64s(values)
				mean := stat.Mean(values, nil)
				median := stat.Quantile(0.5, stat.Empirical, values, nil)
				row = append(row, formatFloat(mean, settings.Format), formatFloat(median, settings.Format))
			}
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func numericValues(rois []roi.ROI, feature string) []float64 {
	var out []float64
	for _, r := range rois {
		v, ok := r.Features[feature]
		if !ok || v.IsString {
			continue
		}
		out = append(out, v.Number)
	}
	return out
}

func collectFeatureNamesByCategory(store *roi.Store, settings config.ExportSettings) map[roi.Category][]string {
	seen := make(map[roi.Category]map[string]bool)
	for _, key := range store.ImageKeys() {
		for _, r := range store.GetAll(key) {
			if !includeROI(r, settings) {
				continue
			}
			if seen[r.Category] == nil {
				seen[r.Category] = make(map[string]bool)
			}
			for name, v := range r.Features {
				if !v.IsString {
					seen[r.Category][name] = true
				}
			}
		}
	}
	out := make(map[roi.Category][]string)
	for cat, names := range seen {
		list := make([]string, 0, len(names))
		for n := range names {
			list = append(list, n)
		}
		sort.Strings(list)
		out[cat] = list
	}
	return out
}
