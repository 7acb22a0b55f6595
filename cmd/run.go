package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/cambium-dev/cambium/internal/sniff"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/executor"
	"github.com/cambium-dev/cambium/pkg/property"
	"github.com/cambium-dev/cambium/pkg/workflow"
)

// NewRunCommand returns the command that executes a workflow file.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run WORKFLOW",
		Short: "Run a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkflow,
	}
	cmd.Flags().String("cost", "", "cost expression over converter costs")
	cmd.Flags().Int("retries", 0, "retry converter failures this many times with backoff")
	cmd.Flags().Duration("timeout", 0, "overall deadline for the workflow (0 = none)")
	return cmd
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	costExpr, _ := cmd.Flags().GetString("cost")
	retries, _ := cmd.Flags().GetInt("retries")
	if retries < 0 {
		retries = 0
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	wf, err := workflow.Load(args[0])
	if err != nil {
		return err
	}

	data, err := os.ReadFile(wf.Source.Path)
	if err != nil {
		return err
	}

	format := wf.Source.Format
	if format == "" {
		format = sniff.Detect(wf.Source.Path, data)
	}

	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	p, err := buildPlanner(reg, costExpr, 0)
	if err != nil {
		return err
	}
	log, err := buildLogger()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runner := workflow.NewRunner(p, executor.NewSimple(reg, executor.WithLogger(log)), log)
	input := converter.Item{
		Data:  data,
		Props: property.NewFormat(format).With(property.KeyPath, property.String(wf.Source.Path)),
	}

	// Converter failures are worth retrying when converters touch flaky
	// external resources; planner and validation failures are not.
	attempt := func() (*executor.Result, error) {
		result, err := runner.Run(ctx, wf, input)
		if err != nil {
			var convErr *converter.Error
			if errors.As(err, &convErr) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return result, nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
	), uint64(retries)), ctx)

	result, err := backoff.RetryWithData(attempt, policy)
	if err != nil {
		return err
	}

	out := result.Item()
	if err := os.WriteFile(wf.Sink.Path, out.Data, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "workflow %s: %s -> %s (%d bytes)\n",
		wf.Name, wf.Source.Path, wf.Sink.Path, len(out.Data))
	return nil
}
