// Package config defines the immutable Settings records for each pipeline
// stage (spec.md 3), validated eagerly and loaded via Viper the way the
// teacher's config package loads Cicada's Config (internal/config/config.go
// in scttfrdmn/cicada).
package config

import "fmt"

// StainMatrix is a 3x3 matrix whose rows are the unit-normalized RGB
// response vectors of hematoxylin, eosin, and background.
type StainMatrix [3][3]float64

// RuifrokHE is the standard Ruifrok-Johnston H&E reference stain matrix.
var RuifrokHE = StainMatrix{
	{0.644211, 0.716556, 0.266844},
	{0.092789, 0.954111, 0.283111},
	{0, 0, 0}, // background row computed from the cross product at use time
}

// ColorDeconvolutionSettings configures internal/deconv.
type ColorDeconvolutionSettings struct {
	StainMatrix StainMatrix `mapstructure:"stain_matrix" yaml:"stain_matrix"`
}

func DefaultColorDeconvolutionSettings() ColorDeconvolutionSettings {
	return ColorDeconvolutionSettings{StainMatrix: RuifrokHE}
}

func (s ColorDeconvolutionSettings) Validate() error {
	for i, row := range s.StainMatrix {
		if i == 2 && row == [3]float64{0, 0, 0} {
			continue // background row may be auto-derived
		}
		norm := row[0]*row[0] + row[1]*row[1] + row[2]*row[2]
		if norm <= 0 {
			return fmt.Errorf("config: stain matrix row %d is zero", i)
		}
	}
	return nil
}

// VesselChannel selects which deconvolved channel VesselSegmenter
// thresholds.
type VesselChannel string

const (
	ChannelHematoxylin VesselChannel = "hematoxylin"
	ChannelEosin       VesselChannel = "eosin"
	ChannelBackground  VesselChannel = "background"
)

// VesselSegmentationSettings configures internal/vessel.
type VesselSegmentationSettings struct {
	Channel        VesselChannel `mapstructure:"channel" yaml:"channel"`
	Threshold      float64       `mapstructure:"threshold" yaml:"threshold"`
	MinArea        float64       `mapstructure:"min_area" yaml:"min_area"`
	MaxArea        float64       `mapstructure:"max_area" yaml:"max_area"`
	ClosingRadius  int           `mapstructure:"closing_radius" yaml:"closing_radius"`
	OverlapTolerance float64     `mapstructure:"overlap_tolerance" yaml:"overlap_tolerance"`
}

func DefaultVesselSegmentationSettings() VesselSegmentationSettings {
	return VesselSegmentationSettings{
		Channel:       ChannelBackground,
		Threshold:     0.15,
		MinArea:       50,
		MaxArea:       1e7,
		ClosingRadius: 2,
	}
}

func (s VesselSegmentationSettings) Validate() error {
	switch s.Channel {
	case ChannelHematoxylin, ChannelEosin, ChannelBackground:
	default:
		return fmt.Errorf("config: unknown vessel channel %q", s.Channel)
	}
	if s.Threshold < 0 {
		return fmt.Errorf("config: threshold must be >= 0, got %v", s.Threshold)
	}
	if s.MinArea < 0 {
		return fmt.Errorf("config: min_area must be >= 0, got %v", s.MinArea)
	}
	if s.MaxArea <= s.MinArea {
		return fmt.Errorf("config: max_area (%v) must exceed min_area (%v)", s.MaxArea, s.MinArea)
	}
	if s.ClosingRadius < 0 {
		return fmt.Errorf("config: closing_radius must be >= 0, got %d", s.ClosingRadius)
	}
	if s.OverlapTolerance < 0 {
		return fmt.Errorf("config: overlap_tolerance must be >= 0, got %v", s.OverlapTolerance)
	}
	return nil
}

// NuclearSegmentationSettings configures internal/nucleus.
type NuclearSegmentationSettings struct {
	ModelID            string  `mapstructure:"model_id" yaml:"model_id"`
	ProbThreshold      float64 `mapstructure:"prob_threshold" yaml:"prob_threshold"`
	NMSThreshold       float64 `mapstructure:"nms_threshold" yaml:"nms_threshold"`
	NormPercentileLow  float64 `mapstructure:"norm_percentile_low" yaml:"norm_percentile_low"`
	NormPercentileHigh float64 `mapstructure:"norm_percentile_high" yaml:"norm_percentile_high"`
	TileSize           int     `mapstructure:"tile_size" yaml:"tile_size"`
	TileOverlapFrac    float64 `mapstructure:"tile_overlap_fraction" yaml:"tile_overlap_fraction"`
}

func DefaultNuclearSegmentationSettings() NuclearSegmentationSettings {
	return NuclearSegmentationSettings{
		ModelID:            "stardist-he-default",
		ProbThreshold:      0.5,
		NMSThreshold:       0.3,
		NormPercentileLow:  1,
		NormPercentileHigh: 99,
		TileSize:           1024,
		TileOverlapFrac:    0.10,
	}
}

func (s NuclearSegmentationSettings) Validate() error {
	if s.ModelID == "" {
		return fmt.Errorf("config: model_id is required")
	}
	if s.ProbThreshold < 0 || s.ProbThreshold > 1 {
		return fmt.Errorf("config: prob_threshold must be in [0,1], got %v", s.ProbThreshold)
	}
	if s.NMSThreshold < 0 || s.NMSThreshold > 1 {
		return fmt.Errorf("config: nms_threshold must be in [0,1], got %v", s.NMSThreshold)
	}
	if s.NormPercentileLow < 0 || s.NormPercentileHigh > 100 || s.NormPercentileLow >= s.NormPercentileHigh {
		return fmt.Errorf("config: invalid normalization percentiles [%v,%v]", s.NormPercentileLow, s.NormPercentileHigh)
	}
	if s.TileSize <= 0 {
		return fmt.Errorf("config: tile_size must be > 0, got %d", s.TileSize)
	}
	if s.TileOverlapFrac < 0 || s.TileOverlapFrac >= 1 {
		return fmt.Errorf("config: tile_overlap_fraction must be in [0,1), got %v", s.TileOverlapFrac)
	}
	return nil
}

// CytoplasmSegmentationSettings configures internal/cellbuild.
//
// The source tool exposed both UseVesselExclusion and an alias
// ExcludeVessels; spec.md 9 requires treating them as one field and
// rejecting configs that disagree. SPEC_FULL resolves this by keeping a
// single canonical field (ExcludeVessels) plus an optional legacy alias
// that Validate reconciles.
type CytoplasmSegmentationSettings struct {
	ExcludeVessels      bool    `mapstructure:"exclude_vessels" yaml:"exclude_vessels"`
	UseVesselExclusion  *bool   `mapstructure:"use_vessel_exclusion" yaml:"use_vessel_exclusion,omitempty"`
	VesselSafetyMargin  float64 `mapstructure:"vessel_safety_margin" yaml:"vessel_safety_margin"`
	MaxCytoplasmRadius  float64 `mapstructure:"max_cytoplasm_radius" yaml:"max_cytoplasm_radius"`
	BoundarySmoothing   float64 `mapstructure:"boundary_smoothing" yaml:"boundary_smoothing"`
}

func DefaultCytoplasmSegmentationSettings() CytoplasmSegmentationSettings {
	return CytoplasmSegmentationSettings{
		ExcludeVessels:     true,
		VesselSafetyMargin: 0,
		MaxCytoplasmRadius: 40,
		BoundarySmoothing:  0,
	}
}

// Validate reconciles the exclude_vessels/use_vessel_exclusion alias and
// rejects a config that sets them to conflicting values (spec.md 9).
func (s *CytoplasmSegmentationSettings) Validate() error {
	if s.UseVesselExclusion != nil && *s.UseVesselExclusion != s.ExcludeVessels {
		return fmt.Errorf("config: exclude_vessels (%v) and use_vessel_exclusion (%v) conflict",
			s.ExcludeVessels, *s.UseVesselExclusion)
	}
	if s.VesselSafetyMargin < 0 {
		return fmt.Errorf("config: vessel_safety_margin must be >= 0, got %v", s.VesselSafetyMargin)
	}
	if s.MaxCytoplasmRadius <= 0 {
		return fmt.Errorf("config: max_cytoplasm_radius must be > 0, got %v", s.MaxCytoplasmRadius)
	}
	if s.BoundarySmoothing < 0 {
		return fmt.Errorf("config: boundary_smoothing must be >= 0, got %v", s.BoundarySmoothing)
	}
	return nil
}

// FeatureGroup selects a family of features (spec.md 4.5).
type FeatureGroup string

const (
	GroupMorphology FeatureGroup = "morphology"
	GroupIntensity  FeatureGroup = "intensity"
	GroupSpatial    FeatureGroup = "spatial"
)

// FeatureExtractionSettings configures internal/features.
type FeatureExtractionSettings struct {
	Groups              []FeatureGroup `mapstructure:"groups" yaml:"groups"`
	Channels            []string       `mapstructure:"channels" yaml:"channels"`
	NeighborRadius      float64        `mapstructure:"neighbor_radius" yaml:"neighbor_radius"`
	SignificantDigits   int            `mapstructure:"significant_digits" yaml:"significant_digits"`
}

func DefaultFeatureExtractionSettings() FeatureExtractionSettings {
	return FeatureExtractionSettings{
		Groups:            []FeatureGroup{GroupMorphology, GroupIntensity, GroupSpatial},
		Channels:          []string{"hematoxylin", "eosin", "background", "gray"},
		NeighborRadius:    50,
		SignificantDigits: 6,
	}
}

func (s FeatureExtractionSettings) Validate() error {
	if len(s.Groups) == 0 {
		return fmt.Errorf("config: at least one feature group must be enabled")
	}
	for _, g := range s.Groups {
		switch g {
		case GroupMorphology, GroupIntensity, GroupSpatial:
		default:
			return fmt.Errorf("config: unknown feature group %q", g)
		}
	}
	if s.NeighborRadius <= 0 {
		return fmt.Errorf("config: neighbor_radius must be > 0, got %v", s.NeighborRadius)
	}
	if s.SignificantDigits <= 0 {
		return fmt.Errorf("config: significant_digits must be > 0, got %d", s.SignificantDigits)
	}
	return nil
}

// ClassificationSettings configures internal/classify.
type ClassificationSettings struct {
	ModelPath            string   `mapstructure:"model_path" yaml:"model_path"`
	ConfidenceThreshold  float64  `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	FeatureSelection     []string `mapstructure:"feature_selection" yaml:"feature_selection"`
}

func DefaultClassificationSettings() ClassificationSettings {
	return ClassificationSettings{
		ConfidenceThreshold: 0.5,
	}
}

// Validate leaves ModelPath unchecked: an empty path means "run without a
// classifier" (the run command loads no model and the orchestrator leaves
// ROIs unclassified), not a configuration error.
func (s ClassificationSettings) Validate() error {
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: confidence_threshold must be in [0,1], got %v", s.ConfidenceThreshold)
	}
	return nil
}

// BatchSettings configures internal/orchestrator.
type BatchSettings struct {
	Parallelism        int     `mapstructure:"parallelism" yaml:"parallelism"`
	ContinueOnError    bool    `mapstructure:"continue_on_error" yaml:"continue_on_error"`
	ProgressCadenceMs  int     `mapstructure:"progress_cadence_ms" yaml:"progress_cadence_ms"`
	RetryCount         int     `mapstructure:"retry_count" yaml:"retry_count"`
	PerImageTimeoutMs  int     `mapstructure:"per_image_timeout_ms" yaml:"per_image_timeout_ms"`
}

func DefaultBatchSettings() BatchSettings {
	return BatchSettings{
		Parallelism:       4,
		ContinueOnError:   true,
		ProgressCadenceMs: 250,
		RetryCount:        2,
		PerImageTimeoutMs: 0, // disabled
	}
}

func (s BatchSettings) Validate() error {
	if s.Parallelism < 1 {
		return fmt.Errorf("config: parallelism must be >= 1, got %d", s.Parallelism)
	}
	if s.ProgressCadenceMs < 0 {
		return fmt.Errorf("config: progress_cadence_ms must be >= 0, got %d", s.ProgressCadenceMs)
	}
	if s.RetryCount < 0 {
		return fmt.Errorf("config: retry_count must be >= 0, got %d", s.RetryCount)
	}
	if s.PerImageTimeoutMs < 0 {
		return fmt.Errorf("config: per_image_timeout_ms must be >= 0, got %d", s.PerImageTimeoutMs)
	}
	return nil
}

// ImageSourceKind selects which Backend internal/imagesource constructs.
type ImageSourceKind string

const (
	SourceLocal ImageSourceKind = "local"
	SourceS3    ImageSourceKind = "s3"
)

// ImageSourceSettings configures internal/imagesource's enumeration and
// decode-cache layer (SPEC_FULL "Image source abstraction").
type ImageSourceSettings struct {
	Kind           ImageSourceKind `mapstructure:"kind" yaml:"kind"`
	Root           string          `mapstructure:"root" yaml:"root"`   // local directory, or s3://bucket/prefix
	Extensions     []string        `mapstructure:"extensions" yaml:"extensions"`
	DecodeCacheSize int            `mapstructure:"decode_cache_size" yaml:"decode_cache_size"`
}

func DefaultImageSourceSettings() ImageSourceSettings {
	return ImageSourceSettings{
		Kind:            SourceLocal,
		Root:            ".",
		Extensions:      []string{".png", ".tif", ".tiff", ".jpg", ".jpeg"},
		DecodeCacheSize: 32,
	}
}

func (s ImageSourceSettings) Validate() error {
	switch s.Kind {
	case SourceLocal, SourceS3:
	default:
		return fmt.Errorf("config: unknown image source kind %q", s.Kind)
	}
	if s.Root == "" {
		return fmt.Errorf("config: image source root is required")
	}
	if len(s.Extensions) == 0 {
		return fmt.Errorf("config: at least one image extension must be configured")
	}
	if s.DecodeCacheSize <= 0 {
		return fmt.Errorf("config: decode_cache_size must be > 0, got %d", s.DecodeCacheSize)
	}
	return nil
}

// CSVFormat selects the export locale (spec.md 6).
type CSVFormat string

const (
	CSVFormatUS CSVFormat = "us"
	CSVFormatEU CSVFormat = "eu"
)

// ExportSettings configures internal/export.
type ExportSettings struct {
	Format         CSVFormat `mapstructure:"format" yaml:"format"`
	IncludeIgnored bool      `mapstructure:"include_ignored" yaml:"include_ignored"`
}

func DefaultExportSettings() ExportSettings {
	return ExportSettings{Format: CSVFormatUS, IncludeIgnored: false}
}

func (s ExportSettings) Validate() error {
	switch s.Format {
	case CSVFormatUS, CSVFormatEU:
	default:
		return fmt.Errorf("config: unknown csv format %q", s.Format)
	}
	return nil
}

// Settings aggregates every per-stage settings record. It is constructed
// once per pipeline run, validated eagerly, and then passed by shared
// immutable reference to every component (spec.md 3 "Lifecycle").
type Settings struct {
	ColorDeconvolution ColorDeconvolutionSettings   `mapstructure:"color_deconvolution" yaml:"color_deconvolution"`
	VesselSegmentation VesselSegmentationSettings   `mapstructure:"vessel_segmentation" yaml:"vessel_segmentation"`
	NuclearSegmentation NuclearSegmentationSettings `mapstructure:"nuclear_segmentation" yaml:"nuclear_segmentation"`
	CytoplasmSegmentation CytoplasmSegmentationSettings `mapstructure:"cytoplasm_segmentation" yaml:"cytoplasm_segmentation"`
	FeatureExtraction  FeatureExtractionSettings    `mapstructure:"feature_extraction" yaml:"feature_extraction"`
	Classification     ClassificationSettings       `mapstructure:"classification" yaml:"classification"`
	Batch              BatchSettings                `mapstructure:"batch" yaml:"batch"`
	Export             ExportSettings               `mapstructure:"export" yaml:"export"`
	ImageSource        ImageSourceSettings          `mapstructure:"image_source" yaml:"image_source"`
}

// Default returns a Settings value with sensible defaults for every
// section, mirroring the teacher's DefaultConfig.
func Default() *Settings {
	return &Settings{
		ColorDeconvolution:    DefaultColorDeconvolutionSettings(),
		VesselSegmentation:    DefaultVesselSegmentationSettings(),
		NuclearSegmentation:   DefaultNuclearSegmentationSettings(),
		CytoplasmSegmentation: DefaultCytoplasmSegmentationSettings(),
		FeatureExtraction:     DefaultFeatureExtractionSettings(),
		Classification:        DefaultClassificationSettings(),
		Batch:                 DefaultBatchSettings(),
		Export:                DefaultExportSettings(),
		ImageSource:           DefaultImageSourceSettings(),
	}
}

// Validate runs every section's range checks and rejects the entire
// config on the first error (spec.md 6 "Validation is eager and rejects
// the entire config on any error").
func (s *Settings) Validate() error {
	if err := s.ColorDeconvolution.Validate(); err != nil {
		return err
	}
	if err := s.VesselSegmentation.Validate(); err != nil {
		return err
	}
	if err := s.NuclearSegmentation.Validate(); err != nil {
		return err
	}
	if err := s.CytoplasmSegmentation.Validate(); err != nil {
		return err
	}
	if err := s.FeatureExtraction.Validate(); err != nil {
		return err
	}
	if err := s.Classification.Validate(); err != nil {
		return err
	}
	if err := s.Batch.Validate(); err != nil {
		return err
	}
	if err := s.Export.Validate(); err != nil {
		return err
	}
	if err := s.ImageSource.Validate(); err != nil {
		return err
	}
	return nil
}
