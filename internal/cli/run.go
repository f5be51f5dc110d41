package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sebastianmicu24/scipathj/internal/classify"
	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/export"
	"github.com/sebastianmicu24/scipathj/internal/imagesource"
	"github.com/sebastianmicu24/scipathj/internal/nucleus"
	"github.com/sebastianmicu24/scipathj/internal/orchestrator"
	"github.com/sebastianmicu24/scipathj/internal/roi"
)

// NewRunCmd creates the run command: enumerate images via
// internal/imagesource, drive them through PipelineOrchestrator, and
// write the CSV reports spec.md 6 describes. Progress is reported to
// stderr as it happens, in the teacher's plain-println style
// (internal/cli/sync.go's progress callback), not through a logging
// framework.
func NewRunCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch pipeline over a folder or bucket of images",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettingsFlag()
			if err != nil {
				return err
			}
			if err := settings.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()

			backend, err := imagesource.Open(ctx, settings.ImageSource)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			reader, err := imagesource.NewReader(backend, settings.ImageSource)
			if err != nil {
				return err
			}

			prefix, err := imagesource.Prefix(settings.ImageSource)
			if err != nil {
				return err
			}
			keys, err := imagesource.ListImages(ctx, backend, prefix, settings.ImageSource.Extensions)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				return fmt.Errorf("no images found under %s", settings.ImageSource.Root)
			}

			var model *classify.Model
			if settings.Classification.ModelPath != "" {
				model, err = classify.Load(settings.Classification.ModelPath)
				if err != nil {
					return fmt.Errorf("load classifier: %w", err)
				}
			}

			store := roi.New()
			events := make(chan orchestrator.Event, 256)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for e := range events {
					printEvent(e)
				}
			}()

			orch := &orchestrator.PipelineOrchestrator{
				Reader:   reader,
				Detector: nucleus.NullDetector{},
				Model:    model,
				Store:    store,
				Settings: settings,
				Events:   events,
			}

			report, runErr := orch.Run(ctx, keys)
			close(events)
			<-done

			printReport(report)
			if runErr != nil {
				return runErr
			}

			return writeReports(store, settings, outDir)
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "./scipathj-output", "directory to write CSV reports into")
	return cmd
}

func printEvent(e orchestrator.Event) {
	switch e.Kind {
	case orchestrator.BatchStarted:
		fmt.Fprintf(os.Stderr, "batch started: %d images\n", e.Total)
	case orchestrator.ImageStarted:
		fmt.Fprintf(os.Stderr, "  %s: started\n", e.ImageKey)
	case orchestrator.ImageProgress:
		fmt.Fprintf(os.Stderr, "  %s: %s\n", e.ImageKey, e.Stage)
	case orchestrator.ImageCompleted:
		fmt.Fprintf(os.Stderr, "  %s: done\n", e.ImageKey)
	case orchestrator.ImageFailed:
		fmt.Fprintf(os.Stderr, "  %s: failed: %v\n", e.ImageKey, e.Err)
	case orchestrator.BatchCompleted:
		fmt.Fprintf(os.Stderr, "batch completed: %d images processed\n", e.Done)
	case orchestrator.BatchCancelled:
		fmt.Fprintf(os.Stderr, "batch cancelled after %d images\n", e.Done)
	}
}

func printReport(r orchestrator.BatchReport) {
	fmt.Printf("total=%d succeeded=%d failed=%d cancelled=%v\n", r.Total, r.Succeeded, r.Failed, r.Cancelled)
	for key, err := range r.Errors {
		fmt.Printf("  %s: %v\n", key, err)
	}
}

func writeReports(store *roi.Store, settings *config.Settings, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	roiPath := filepath.Join(outDir, "rois.csv")
	roiFile, err := os.Create(roiPath)
	if err != nil {
		return err
	}
	defer func() { _ = roiFile.Close() }()
	if err := export.WritePerROIReport(roiFile, store, settings.Export); err != nil {
		return fmt.Errorf("write %s: %w", roiPath, err)
	}

	summaryPath := filepath.Join(outDir, "image_summary.csv")
	summaryFile, err := os.Create(summaryPath)
	if err != nil {
		return err
	}
	defer func() { _ = summaryFile.Close() }()
	if err := export.WritePerImageSummaryReport(summaryFile, store, settings.Export); err != nil {
		return fmt.Errorf("write %s: %w", summaryPath, err)
	}

	archivePath := filepath.Join(outDir, "rois.zip")
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = archiveFile.Close() }()
	if err := roi.ExportArchive(archiveFile, store); err != nil {
		return fmt.Errorf("write %s: %w", archivePath, err)
	}

	fmt.Printf("wrote reports to %s\n", outDir)
	return nil
}
