package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cambium-dev/cambium/internal/cost"
	"github.com/cambium-dev/cambium/pkg/archive"
	"github.com/cambium-dev/cambium/pkg/logger"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/registry"
	"github.com/cambium-dev/cambium/pkg/serde"
)

// registerPlanFlags declares the planning flags shared by plan and convert.
func registerPlanFlags(fs *pflag.FlagSet) {
	fs.String("cost", "", "cost expression over converter costs, e.g. 'quality_loss * 2.0 + size'")
	fs.Int("max-hops", 0, "maximum plan length (default 16)")
}

// planFlags reads them back.
func planFlags(fs *pflag.FlagSet) (costExpr string, maxHops int) {
	costExpr, _ = fs.GetString("cost")
	maxHops, _ = fs.GetInt("max-hops")
	return costExpr, maxHops
}

// buildRegistry wires the built-in converter packs.
func buildRegistry() (*registry.Registry, error) {
	reg := registry.New()
	if err := serde.RegisterAll(reg); err != nil {
		return nil, err
	}
	if err := archive.RegisterAll(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// buildPlanner constructs a planner over reg, compiling the cost expression
// when one was given.
func buildPlanner(reg *registry.Registry, costExpr string, maxHops int) (*planner.Planner, error) {
	cfg := planner.Config{MaxHops: maxHops}
	if costExpr != "" {
		expr, err := cost.Compile(costExpr)
		if err != nil {
			return nil, err
		}
		cfg.Cost = expr.CostFunc()
	}
	return planner.New(reg, cfg), nil
}

func buildLogger() (logger.Logger, error) {
	format := viper.GetString("log-format")
	if format == "" {
		format = "text"
	}
	level := viper.GetString("log-level")
	if level == "" {
		level = "none"
	}
	log, err := logger.NewLogger(format, level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	return log, nil
}
