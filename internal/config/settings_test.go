package config

import "testing"

func TestDefaultSettingsValidate(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings should validate: %v", err)
	}
}

func TestCytoplasmAliasConflictRejected(t *testing.T) {
	falseVal := false
	s := DefaultCytoplasmSegmentationSettings()
	s.ExcludeVessels = true
	s.UseVesselExclusion = &falseVal

	if err := s.Validate(); err == nil {
		t.Fatal("expected conflicting exclude_vessels/use_vessel_exclusion to be rejected")
	}
}

func TestCytoplasmAliasAgreeingAccepted(t *testing.T) {
	trueVal := true
	s := DefaultCytoplasmSegmentationSettings()
	s.ExcludeVessels = true
	s.UseVesselExclusion = &trueVal

	if err := s.Validate(); err != nil {
		t.Fatalf("agreeing alias should validate: %v", err)
	}
}

func TestBatchSettingsRejectsZeroParallelism(t *testing.T) {
	s := DefaultBatchSettings()
	s.Parallelism = 0
	if err := s.Validate(); err == nil {
		t.Fatal("expected zero parallelism to be rejected")
	}
}

func TestVesselSegmentationRejectsInvertedAreaRange(t *testing.T) {
	s := DefaultVesselSegmentationSettings()
	s.MinArea = 100
	s.MaxArea = 50
	if err := s.Validate(); err == nil {
		t.Fatal("expected max_area <= min_area to be rejected")
	}
}

func TestClassificationAllowsEmptyModelPath(t *testing.T) {
	s := DefaultClassificationSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("an unset model_path means run without a classifier, not an invalid config: %v", err)
	}
}

func TestClassificationRejectsOutOfRangeConfidence(t *testing.T) {
	s := DefaultClassificationSettings()
	s.ConfidenceThreshold = 1.5
	if err := s.Validate(); err == nil {
		t.Fatal("expected confidence_threshold outside [0,1] to be rejected")
	}
}

func TestExportSettingsRejectsUnknownFormat(t *testing.T) {
	s := DefaultExportSettings()
	s.Format = "fr"
	if err := s.Validate(); err == nil {
		t.Fatal("expected unknown csv format to be rejected")
	}
}

func TestImageSourceSettingsRejectsEmptyRoot(t *testing.T) {
	s := DefaultImageSourceSettings()
	s.Root = ""
	if err := s.Validate(); err == nil {
		t.Fatal("expected empty root to be rejected")
	}
}

func TestImageSourceSettingsRejectsUnknownKind(t *testing.T) {
	s := DefaultImageSourceSettings()
	s.Kind = "ftp"
	if err := s.Validate(); err == nil {
		t.Fatal("expected unknown image source kind to be rejected")
	}
}

func TestImageSourceSettingsDefaultValidates(t *testing.T) {
	s := DefaultImageSourceSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("default image source settings should validate: %v", err)
	}
}
