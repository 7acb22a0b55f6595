package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/property"
)

// NewPlanCommand returns the command that searches for a conversion route
// without executing it.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan --from FORMAT --to FORMAT",
		Short: "Find a conversion route between two formats",
		Args:  cobra.NoArgs,
		RunE:  planRoute,
	}
	cmd.Flags().String("from", "", "source format")
	cmd.Flags().String("to", "", "target format")
	registerPlanFlags(cmd.Flags())
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func planRoute(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	costExpr, maxHops := planFlags(cmd.Flags())

	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	p, err := buildPlanner(reg, costExpr, maxHops)
	if err != nil {
		return err
	}

	plan, err := p.Plan(cmd.Context(), property.NewFormat(from), pattern.Format(to), converter.One, converter.One)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Plan (%d steps, cost %.2f):\n", plan.Len(), plan.TotalCost)
	for i := range plan.Steps {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, plan.Steps[i].ConverterID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Final properties: %s\n", plan.FinalProps.String())
	return nil
}
