package cli

import (
	"path/filepath"
	"testing"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/testutil"
)

// TestConfigInitShowValidate exercises init -> show -> validate the way a
// user would run them back to back, mirroring the teacher's direct
// cmd.SetArgs/cmd.Execute style (internal/cli/metadata_test.go).
func TestConfigInitShowValidate(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "pipeline.yaml")

	cfgFile = path
	defer func() { cfgFile = "" }()

	initCmd := NewConfigCmd()
	initCmd.SetArgs([]string{"init"})
	if err := initCmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	showCmd := NewConfigCmd()
	showCmd.SetArgs([]string{"show"})
	if err := showCmd.Execute(); err != nil {
		t.Fatalf("config show: %v", err)
	}

	validateCmd := NewConfigCmd()
	validateCmd.SetArgs([]string{"validate", path})
	if err := validateCmd.Execute(); err != nil {
		t.Fatalf("config validate: %v", err)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if loaded.VesselSegmentation.Threshold != config.DefaultVesselSegmentationSettings().Threshold {
		t.Errorf("written config does not round-trip default vessel threshold: got %v", loaded.VesselSegmentation.Threshold)
	}
}

func TestConfigInitRefusesToOverwriteWithoutForce(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "pipeline.yaml")

	cfgFile = path
	defer func() { cfgFile = "" }()

	first := NewConfigCmd()
	first.SetArgs([]string{"init"})
	if err := first.Execute(); err != nil {
		t.Fatalf("first init: %v", err)
	}

	second := NewConfigCmd()
	second.SetArgs([]string{"init"})
	if err := second.Execute(); err == nil {
		t.Fatal("expected second init without --force to fail")
	}

	third := NewConfigCmd()
	third.SetArgs([]string{"init", "--force"})
	if err := third.Execute(); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestConfigValidateRejectsBadConfig(t *testing.T) {
	dir := testutil.TempDir(t)
	path := testutil.WriteFile(t, dir, "bad.yaml", "vessel_segmentation:\n  threshold: -1\n")

	cmd := NewConfigCmd()
	cmd.SetArgs([]string{"validate", path})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected validate to reject a negative threshold")
	}
}
