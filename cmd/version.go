package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cambium-dev/cambium/internal/build"
)

// NewVersionCommand returns the command to get the cambium version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Return the Cambium version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Cambium version %s commit %s\n", build.Version, build.Commit)
			return nil
		},
	}
}
