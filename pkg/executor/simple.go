package executor

import (
	"context"

	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/logger"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/registry"
)

// Option configures an executor at construction.
type Option func(*engine)

// WithLogger routes execution logs through l instead of the noop default.
func WithLogger(l logger.Logger) Option {
	return func(e *engine) {
		e.logger = l
	}
}

// Simple runs plans sequentially with no admission checks and no
// parallelism. Suitable when no resource bound is desired, e.g. one-shot CLI
// conversions.
type Simple struct {
	engine engine
}

var _ Executor = (*Simple)(nil)

// NewSimple returns a sequential unbounded executor over reg.
func NewSimple(reg *registry.Registry, opts ...Option) *Simple {
	s := &Simple{engine: engine{registry: reg, logger: logger.NewNoopLogger()}}
	for _, opt := range opts {
		opt(&s.engine)
	}
	return s
}

// Execute runs plan over a single input item.
func (s *Simple) Execute(ctx context.Context, plan *planner.Plan, input converter.Item) (*Result, error) {
	return s.engine.run(ctx, plan, []converter.Item{input}, false)
}

// ExecuteBatch runs plan over an ordered input batch.
func (s *Simple) ExecuteBatch(ctx context.Context, plan *planner.Plan, inputs []converter.Item) (*Result, error) {
	return s.engine.run(ctx, plan, inputs, true)
}
