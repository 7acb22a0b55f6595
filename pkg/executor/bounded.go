package executor

import (
	"context"

	"github.com/cambium-dev/cambium/pkg/budget"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/logger"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/registry"
)

// Bounded runs plans sequentially, reserving every converter output against
// a memory budget before accepting it. A denied reservation aborts the
// remaining plan.
type Bounded struct {
	engine engine
}

var _ Executor = (*Bounded)(nil)

// NewBounded returns a sequential executor admitting intermediates against b.
func NewBounded(reg *registry.Registry, b *budget.MemoryBudget, opts ...Option) *Bounded {
	e := &Bounded{engine: engine{registry: reg, budget: b, logger: logger.NewNoopLogger()}}
	for _, opt := range opts {
		opt(&e.engine)
	}
	return e
}

// Execute runs plan over a single input item.
func (b *Bounded) Execute(ctx context.Context, plan *planner.Plan, input converter.Item) (*Result, error) {
	return b.engine.run(ctx, plan, []converter.Item{input}, false)
}

// ExecuteBatch runs plan over an ordered input batch.
func (b *Bounded) ExecuteBatch(ctx context.Context, plan *planner.Plan, inputs []converter.Item) (*Result, error) {
	return b.engine.run(ctx, plan, inputs, true)
}
