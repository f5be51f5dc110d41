package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Path returns the default configuration file path, mirroring the
// teacher's ConfigPath/ConfigDir helpers.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: get home directory: %w", err)
	}
	return filepath.Join(home, ".scipathj", "pipeline.yaml"), nil
}

// Dir returns the default configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: get home directory: %w", err)
	}
	return filepath.Join(home, ".scipathj"), nil
}

// Load reads and validates configuration from path. Supported formats are
// whatever Viper infers from the extension (YAML, JSON, TOML); unset
// fields fall back to Default()'s values before validation runs.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	settings := Default()
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid settings in %s: %w", path, err)
	}

	return settings, nil
}

// LoadOrDefault loads the config from the default path, or returns
// Default() if no file exists yet.
func LoadOrDefault() (*Settings, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes settings to path in YAML, creating parent directories as
// needed, mirroring the teacher's Save.
func Save(settings *Settings, path string) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("config: refusing to save invalid settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.MergeConfigMap(toMap(settings)); err != nil {
		return fmt.Errorf("config: marshal settings: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func toMap(s *Settings) map[string]interface{} {
	return map[string]interface{}{
		"color_deconvolution": map[string]interface{}{
			"stain_matrix": s.ColorDeconvolution.StainMatrix,
		},
		"vessel_segmentation": map[string]interface{}{
			"channel":           string(s.VesselSegmentation.Channel),
			"threshold":         s.VesselSegmentation.Threshold,
			"min_area":          s.VesselSegmentation.MinArea,
			"max_area":          s.VesselSegmentation.MaxArea,
			"closing_radius":    s.VesselSegmentation.ClosingRadius,
			"overlap_tolerance": s.VesselSegmentation.OverlapTolerance,
		},
		"nuclear_segmentation": map[string]interface{}{
			"model_id":               s.NuclearSegmentation.ModelID,
			"prob_threshold":         s.NuclearSegmentation.ProbThreshold,
			"nms_threshold":          s.NuclearSegmentation.NMSThreshold,
			"norm_percentile_low":    s.NuclearSegmentation.NormPercentileLow,
			"norm_percentile_high":   s.NuclearSegmentation.NormPercentileHigh,
			"tile_size":              s.NuclearSegmentation.TileSize,
			"tile_overlap_fraction":  s.NuclearSegmentation.TileOverlapFrac,
		},
		"cytoplasm_segmentation": map[string]interface{}{
			"exclude_vessels":       s.CytoplasmSegmentation.ExcludeVessels,
			"vessel_safety_margin":  s.CytoplasmSegmentation.VesselSafetyMargin,
			"max_cytoplasm_radius":  s.CytoplasmSegmentation.MaxCytoplasmRadius,
			"boundary_smoothing":    s.CytoplasmSegmentation.BoundarySmoothing,
		},
		"feature_extraction": map[string]interface{}{
			"groups":             s.FeatureExtraction.Groups,
			"channels":           s.FeatureExtraction.Channels,
			"neighbor_radius":    s.FeatureExtraction.NeighborRadius,
			"significant_digits": s.FeatureExtraction.SignificantDigits,
		},
		"classification": map[string]interface{}{
			"model_path":           s.Classification.ModelPath,
			"confidence_threshold": s.Classification.ConfidenceThreshold,
			"feature_selection":    s.Classification.FeatureSelection,
		},
		"batch": map[string]interface{}{
			"parallelism":          s.Batch.Parallelism,
			"continue_on_error":    s.Batch.ContinueOnError,
			"progress_cadence_ms":  s.Batch.ProgressCadenceMs,
			"retry_count":          s.Batch.RetryCount,
			"per_image_timeout_ms": s.Batch.PerImageTimeoutMs,
		},
		"export": map[string]interface{}{
			"format":          string(s.Export.Format),
			"include_ignored": s.Export.IncludeIgnored,
		},
		"image_source": map[string]interface{}{
			"kind":              string(s.ImageSource.Kind),
			"root":              s.ImageSource.Root,
			"extensions":        s.ImageSource.Extensions,
			"decode_cache_size": s.ImageSource.DecodeCacheSize,
		},
	}
}
