package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cambium-dev/cambium/internal/sniff"
	"github.com/cambium-dev/cambium/pkg/budget"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/executor"
	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/property"
)

// NewConvertCommand returns the command that plans and executes a single
// file conversion.
func NewConvertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert INPUT -o OUTPUT",
		Short: "Convert a file to the format implied by the output path",
		Args:  cobra.ExactArgs(1),
		RunE:  convert,
	}
	cmd.Flags().StringP("output", "o", "", "output path")
	cmd.Flags().String("from", "", "source format (default: sniffed from the input)")
	cmd.Flags().String("to", "", "target format (default: from the output extension)")
	registerPlanFlags(cmd.Flags())
	cmd.Flags().Uint64("memory-limit", 0, "memory budget in bytes (0 = unbounded)")
	cmd.Flags().Int("parallel", 0, "worker count for batch stages (0 = sequential)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func convert(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	costExpr, maxHops := planFlags(cmd.Flags())
	memoryLimit, _ := cmd.Flags().GetUint64("memory-limit")
	parallel, _ := cmd.Flags().GetInt("parallel")

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	if from == "" {
		from = sniff.Detect(inputPath, data)
	}
	if to == "" {
		to = sniff.FormatForPath(outputPath)
		if to == "" {
			return fmt.Errorf("cannot infer target format from %q; pass --to", outputPath)
		}
	}

	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	p, err := buildPlanner(reg, costExpr, maxHops)
	if err != nil {
		return err
	}
	log, err := buildLogger()
	if err != nil {
		return err
	}

	props := property.NewFormat(from).With(property.KeyPath, property.String(inputPath))
	plan, err := p.Plan(cmd.Context(), props, pattern.Format(to), converter.One, converter.One)
	if err != nil {
		return err
	}

	var exec executor.Executor
	switch {
	case parallel > 0 && memoryLimit > 0:
		exec = executor.NewParallel(reg, budget.New(memoryLimit), parallel, executor.WithLogger(log))
	case parallel > 0:
		exec = executor.NewParallel(reg, nil, parallel, executor.WithLogger(log))
	case memoryLimit > 0:
		if estimate := executor.EstimateMemory(uint64(len(data)), plan); estimate > memoryLimit {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: estimated peak memory %d bytes exceeds the %d byte limit\n", estimate, memoryLimit)
		}
		exec = executor.NewBounded(reg, budget.New(memoryLimit), executor.WithLogger(log))
	default:
		exec = executor.NewSimple(reg, executor.WithLogger(log))
	}

	result, err := exec.Execute(cmd.Context(), plan, converter.Item{Data: data, Props: props})
	if err != nil {
		return err
	}

	out := result.Item()
	if err := os.WriteFile(outputPath, out.Data, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d steps, %d bytes)\n",
		inputPath, outputPath, result.Stats.StepsExecuted, len(out.Data))
	return nil
}
