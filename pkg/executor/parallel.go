package executor

import (
	"context"
	"runtime"

	"github.com/cambium-dev/cambium/internal/concurrency"
	"github.com/cambium-dev/cambium/pkg/budget"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/logger"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/registry"
)

// Parallel runs element-wise steps of a batch on a bounded worker pool,
// subject to per-item admission against the budget. Aggregation (many-to-one)
// and expansion (one-to-many) points are barriers: all prior work items
// complete before the step crosses them. Emitted batches preserve input
// order regardless of completion order.
type Parallel struct {
	engine engine
}

var _ Executor = (*Parallel)(nil)

// NewParallel returns a pooled executor with the given worker count; workers
// <= 0 means runtime.NumCPU. A nil budget disables admission.
func NewParallel(reg *registry.Registry, b *budget.MemoryBudget, workers int, opts ...Option) *Parallel {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Parallel{engine: engine{registry: reg, budget: b, poolSize: workers, logger: logger.NewNoopLogger()}}
	for _, opt := range opts {
		opt(&p.engine)
	}
	return p
}

// Execute runs plan over a single input item. Parallelism only materializes
// once a fan-out step turns the input into a batch.
func (p *Parallel) Execute(ctx context.Context, plan *planner.Plan, input converter.Item) (*Result, error) {
	return p.engine.run(ctx, plan, []converter.Item{input}, false)
}

// ExecuteBatch runs plan over an ordered input batch.
func (p *Parallel) ExecuteBatch(ctx context.Context, plan *planner.Plan, inputs []converter.Item) (*Result, error) {
	return p.engine.run(ctx, plan, inputs, true)
}

// ExecuteJobs fans independent jobs out over the worker pool and returns
// per-job outcomes in input order.
func (p *Parallel) ExecuteJobs(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	_ = concurrency.ForEachIndexed(ctx, p.engine.poolSize, len(jobs), func(ctx context.Context, i int) error {
		res, err := p.engine.run(ctx, jobs[i].Plan, []converter.Item{jobs[i].Input}, false)
		results[i] = JobResult{Result: res, Err: err}
		// Job failures land in the per-job slot, not the pool error.
		return nil
	})
	return results
}
