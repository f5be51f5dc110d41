package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCmd creates the version command.
func NewVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scipathj version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("scipathj " + version)
			return nil
		},
	}
}
