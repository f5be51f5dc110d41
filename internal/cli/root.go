// Package cli assembles the scipathj command tree, following the
// teacher's cobra-based root command (scttfrdmn/cicada/internal/cli/root.go):
// persistent --config/--verbose flags, one subcommand per concern.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

// Execute runs the root command.
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}

// NewRootCmd creates the root command.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scipathj",
		Short: "Batch histopathology image analysis",
		Long: `scipathj segments and classifies biological structures (vessels, nuclei,
cytoplasm, cells) across a batch of H&E-stained histopathology images,
extracting per-object features and exporting per-object and per-image
statistics.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.scipathj/pipeline.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewArchiveCmd())
	rootCmd.AddCommand(NewVersionCmd(version))

	return rootCmd
}
