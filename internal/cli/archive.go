package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sebastianmicu24/scipathj/internal/roi"
)

// NewArchiveCmd exposes ROIStore archive round-trip as its own subcommand
// tree (SPEC_FULL "scipathj archive export|import"), mirroring the
// teacher's pattern of exposing sync/doi operations outside of a full
// batch run.
func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect or migrate ROI archives outside of a batch run",
	}
	cmd.AddCommand(newArchiveImportCmd(), newArchiveExportCmd())
	return cmd
}

func newArchiveImportCmd() *cobra.Command {
	var imageKey string
	cmd := &cobra.Command{
		Use:   "import <archive>",
		Short: "Import an ROI archive and print per-category counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := roi.New()
			if err := importArchiveFile(args[0], store, imageKey); err != nil {
				return err
			}
			counts := store.TotalCountByCategory()
			for _, cat := range []roi.Category{roi.Vessel, roi.Nucleus, roi.Cytoplasm, roi.Cell, roi.Ignore} {
				fmt.Printf("%s: %d\n", cat, counts[cat])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&imageKey, "image", "", "only import ROIs belonging to this image key")
	return cmd
}

func newArchiveExportCmd() *cobra.Command {
	var imageKey string
	cmd := &cobra.Command{
		Use:   "export <input-archive> <output-archive>",
		Short: "Re-export an archive, optionally filtered to one image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := roi.New()
			if err := importArchiveFile(args[0], store, imageKey); err != nil {
				return err
			}
			out, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[1], err)
			}
			defer func() { _ = out.Close() }()
			return roi.ExportArchive(out, store)
		},
	}
	cmd.Flags().StringVar(&imageKey, "image", "", "only include ROIs belonging to this image key")
	return cmd
}

func importArchiveFile(path string, store *roi.Store, imageKey string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return roi.ImportArchive(f, info.Size(), store, imageKey)
}
