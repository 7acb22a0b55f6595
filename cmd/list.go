package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCommand returns the command that lists registered converters.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available converters",
		Args:  cobra.NoArgs,
		RunE:  list,
	}
}

func list(cmd *cobra.Command, _ []string) error {
	reg, err := buildRegistry()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Available converters (%d):\n\n", reg.Len())
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIN\tOUT\tDESCRIPTION")
	for _, conv := range reg.All() {
		decl := conv.Decl()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			decl.ID,
			decl.InputCard.String(),
			decl.OutputCard.String(),
			decl.Description,
		)
	}
	return w.Flush()
}
