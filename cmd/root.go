// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cambium-dev/cambium/pkg/budget"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/executor"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/telemetry"
)

// Exit codes surfaced by the binary.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitNoPath         = 2
	ExitBudgetExceeded = 3
	ExitConverterError = 4
)

// NewRootCommand lets the root's persistent flags (logging and tracing) be
// read from CLI flags, environment variables prefixed with CAMBIUM, or
// config.yaml (in that order). Subcommand flags are read from the command
// line only.
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CAMBIUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/cambium", "$HOME/.cambium", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	_ = viper.ReadInConfig()

	cmd := &cobra.Command{
		Use:   "cambium",
		Short: "Type-driven data transformation route planner",
		Long: `Type-driven data transformation route planner.

Cambium plans a minimum-cost route through the registered converters from
the properties your data has to the pattern you want, then executes it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-format", "text", "log output format (text, json)")
	cmd.PersistentFlags().String("log-level", "none", "log level (none, debug, info, warn, error)")
	cmd.PersistentFlags().String("otlp-endpoint", "", "OTLP gRPC endpoint to export planner traces to (empty disables tracing)")
	cmd.PersistentFlags().Float64("trace-sample-ratio", 1, "fraction of traces to sample when exporting")
	_ = viper.BindPFlag("log-format", cmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("otlp-endpoint", cmd.PersistentFlags().Lookup("otlp-endpoint"))
	_ = viper.BindPFlag("trace-sample-ratio", cmd.PersistentFlags().Lookup("trace-sample-ratio"))

	cmd.PersistentPreRun = func(*cobra.Command, []string) {
		if endpoint := viper.GetString("otlp-endpoint"); endpoint != "" {
			telemetry.MustNewTracerProvider(
				telemetry.WithOTLPEndpoint(endpoint),
				telemetry.WithSamplingRatio(viper.GetFloat64("trace-sample-ratio")),
			)
		}
	}

	return cmd
}

// ExitCode maps an error to the documented process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var noPath *planner.ErrNoPath
	if errors.As(err, &noPath) {
		return ExitNoPath
	}

	var exceeded *budget.ExceededError
	if errors.As(err, &exceeded) {
		return ExitBudgetExceeded
	}

	// executors layer ErrConversion over converter-originated failures; the
	// errors.As fallback catches converter errors surfaced outside a run
	var convErr *converter.Error
	if errors.Is(err, executor.ErrConversion) || errors.As(err, &convErr) {
		return ExitConverterError
	}

	return ExitFailure
}
