package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/cambium-dev/cambium/internal/build"
)

// NewManpageCommand returns the command that generates man pages for the
// whole command tree.
func NewManpageCommand(root *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manpage DIR",
		Short: "Generate man pages into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(args[0], 0o755); err != nil {
				return err
			}
			header := &doc.GenManHeader{
				Title:   "CAMBIUM",
				Section: "1",
				Source:  "cambium " + build.Version,
			}
			return doc.GenManTree(root, header, args[0])
		},
	}
	return cmd
}
