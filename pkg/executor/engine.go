package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cambium-dev/cambium/internal/concurrency"
	interrors "github.com/cambium-dev/cambium/internal/errors"
	"github.com/cambium-dev/cambium/pkg/budget"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/logger"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/property"
	"github.com/cambium-dev/cambium/pkg/registry"
)

// engine is the shared plan-walking core behind all three executors. The
// budget being nil disables admission; poolSize 0 keeps element-wise stages
// sequential.
type engine struct {
	registry *registry.Registry
	budget   *budget.MemoryBudget
	logger   logger.Logger
	poolSize int
}

// permitSet accumulates the permits backing one generation of intermediate
// buffers. Release is idempotent, so releasing on every exit path is safe.
type permitSet struct {
	mu      sync.Mutex
	permits []*budget.Permit
}

func (s *permitSet) add(p *budget.Permit) {
	s.mu.Lock()
	s.permits = append(s.permits, p)
	s.mu.Unlock()
}

func (s *permitSet) release() {
	s.mu.Lock()
	for _, p := range s.permits {
		p.Release()
	}
	s.permits = nil
	s.mu.Unlock()
}

func (e *engine) run(ctx context.Context, plan *planner.Plan, items []converter.Item, multi bool) (*Result, error) {
	runID := ulid.Make().String()
	start := time.Now()
	state := StateRunning
	executionsStartedCounter.Inc()

	e.logger.DebugWithContext(ctx, "execution started",
		zap.String("run_id", runID),
		zap.Int("steps", plan.Len()),
		zap.Int("inputs", len(items)),
	)

	current := items
	currentMulti := multi
	peak := batchBytes(current)

	// Permits backing the live intermediate generation, plus the in-flight
	// generation being produced. Both drain on every exit path.
	live := &permitSet{}
	pending := &permitSet{}
	defer func() {
		live.release()
		pending.release()
	}()

	fail := func(err error) (*Result, error) {
		state = StateFailed
		var aborted *AbortedError
		if errors.As(err, &aborted) {
			state = StateAborted
		}
		executionsFinishedCounter.WithLabelValues(state.String()).Inc()
		e.logger.WarnWithContext(ctx, "execution finished",
			zap.String("run_id", runID),
			zap.String("state", state.String()),
			zap.Error(err),
		)
		return nil, err
	}

	for stepIdx := range plan.Steps {
		step := &plan.Steps[stepIdx]

		if err := ctx.Err(); err != nil {
			return fail(&AbortedError{Cause: err})
		}

		conv, found := e.registry.Get(step.ConverterID)
		if !found {
			return fail(interrors.With(
				&FailedError{Step: stepIdx, Cause: &NotFoundError{ID: step.ConverterID}},
				ErrConversion,
			))
		}
		decl := conv.Decl()

		if err := guard(stepIdx, decl, current); err != nil {
			return fail(&FailedError{Step: stepIdx, Cause: err})
		}

		var (
			outputs  []converter.Item
			outMulti bool
			err      error
		)
		switch {
		case decl.InputCard == converter.Many:
			outputs, outMulti, err = e.runAggregate(ctx, stepIdx, conv, step, current, pending)
		case !currentMulti:
			outputs, outMulti, err = e.runSingle(ctx, stepIdx, conv, current[0], pending)
		default:
			outputs, err = e.runElementWise(ctx, stepIdx, conv, current, pending)
			outMulti = true
		}
		if err != nil {
			return fail(err)
		}

		if b := batchBytes(current) + batchBytes(outputs); b > peak {
			peak = b
		}

		// The inputs' last reader is done; their permits release and the
		// outputs' permits become the live generation.
		live.release()
		live, pending = pending, &permitSet{}

		current = outputs
		currentMulti = outMulti
		stepsExecutedCounter.Inc()
	}

	state = StateSucceeded
	executionsFinishedCounter.WithLabelValues(state.String()).Inc()
	duration := time.Since(start)
	executionDurationHistogram.Observe(float64(duration.Milliseconds()))

	e.logger.DebugWithContext(ctx, "execution finished",
		zap.String("run_id", runID),
		zap.String("state", state.String()),
		zap.Duration("duration", duration),
		zap.Int("outputs", len(current)),
	)

	return &Result{
		Items: current,
		Multi: currentMulti,
		State: state,
		Stats: Stats{
			Duration:      duration,
			PeakMemory:    peak,
			StepsExecuted: plan.Len(),
		},
	}, nil
}

// runSingle executes a One-input step over a single item.
func (e *engine) runSingle(ctx context.Context, stepIdx int, conv converter.Converter, item converter.Item, pending *permitSet) ([]converter.Item, bool, error) {
	out, err := e.invoke(ctx, stepIdx, conv, item.Data, item.Props, pending)
	if err != nil {
		return nil, false, err
	}
	return out.Items(), out.IsMulti(), nil
}

// runAggregate executes a Many-input step: the whole current batch goes into
// one ConvertBatch call, in input order.
func (e *engine) runAggregate(ctx context.Context, stepIdx int, conv converter.Converter, step *planner.PlanStep, current []converter.Item, pending *permitSet) ([]converter.Item, bool, error) {
	batchConv, ok := conv.(converter.BatchConverter)
	if !ok {
		return nil, false, &FailedError{
			Step:  stepIdx,
			Cause: fmt.Errorf("converter %s declares many-input but does not implement batch conversion", conv.Decl().ID),
		}
	}

	shared := step.InputProps
	if len(current) > 0 {
		shared = current[0].Props
	}

	out, err := batchConv.ConvertBatch(ctx, current, shared)
	if err != nil {
		return nil, false, interrors.With(&FailedError{
			Step:  stepIdx,
			Cause: &converter.Error{ID: conv.Decl().ID, Cause: err},
		}, ErrConversion)
	}
	if err := e.admit(out.Items(), pending); err != nil {
		return nil, false, err
	}
	return out.Items(), out.IsMulti(), nil
}

// runElementWise applies a One-input converter to every item of a batch,
// preserving input order in the emitted batch regardless of completion
// order. With poolSize > 0 the items run concurrently.
func (e *engine) runElementWise(ctx context.Context, stepIdx int, conv converter.Converter, current []converter.Item, pending *permitSet) ([]converter.Item, error) {
	perItem := make([][]converter.Item, len(current))

	work := func(ctx context.Context, i int) error {
		out, err := e.invoke(ctx, stepIdx, conv, current[i].Data, current[i].Props, pending)
		if err != nil {
			return err
		}
		perItem[i] = out.Items()
		return nil
	}

	if e.poolSize > 0 && len(current) > 1 {
		if err := concurrency.ForEachIndexed(ctx, e.poolSize, len(current), work); err != nil {
			return nil, err
		}
	} else {
		for i := range current {
			if err := work(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	var flat []converter.Item
	for _, items := range perItem {
		flat = append(flat, items...)
	}
	return flat, nil
}

// invoke runs one converter call with the cancellation check and output
// admission common to every dispatch shape.
func (e *engine) invoke(ctx context.Context, stepIdx int, conv converter.Converter, data []byte, props *property.Properties, pending *permitSet) (*converter.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AbortedError{Cause: err}
	}
	out, err := conv.Convert(ctx, data, props)
	if err != nil {
		return nil, interrors.With(&FailedError{
			Step:  stepIdx,
			Cause: &converter.Error{ID: conv.Decl().ID, Cause: err},
		}, ErrConversion)
	}
	if err := e.admit(out.Items(), pending); err != nil {
		return nil, err
	}
	return out, nil
}

// admit reserves budget for freshly produced output buffers. Admission is
// fail-fast: a denial aborts the remaining plan.
func (e *engine) admit(items []converter.Item, pending *permitSet) error {
	if e.budget == nil {
		return nil
	}
	for i := range items {
		permit, err := e.budget.Reserve(uint64(len(items[i].Data)))
		if err != nil {
			budgetRejectionsCounter.Inc()
			return &AbortedError{Cause: err}
		}
		pending.add(permit)
	}
	return nil
}

// guard verifies the matching contract before a step runs: the first item
// must satisfy the step's requires-pattern (a miss is planner/runtime
// drift), and every further batch item must agree with it on the pattern's
// keys (a miss is batch heterogeneity).
func guard(stepIdx int, decl *converter.Decl, items []converter.Item) error {
	if len(items) == 0 {
		return nil
	}
	req := decl.Requires
	if !req.Matches(items[0].Props) {
		return &PlanMismatchError{Step: stepIdx, ConverterID: decl.ID, Props: items[0].Props}
	}
	for i := 1; i < len(items); i++ {
		if req.Matches(items[i].Props) {
			continue
		}
		return &HeterogeneousBatchError{
			Step:        stepIdx,
			ConverterID: decl.ID,
			Index:       i,
			Keys:        disagreeingKeys(req.Keys(), items[0], items[i]),
		}
	}
	return nil
}

func disagreeingKeys(keys []string, a, b converter.Item) []string {
	var out []string
	for _, k := range keys {
		av, aok := a.Props.Get(k)
		bv, bok := b.Props.Get(k)
		if aok != bok || (aok && !av.Equal(bv)) {
			out = append(out, k)
		}
	}
	return out
}

func batchBytes(items []converter.Item) uint64 {
	var n uint64
	for i := range items {
		n += uint64(len(items[i].Data))
	}
	return n
}
