// Package executor runs conversion plans. An executor walks the plan's
// steps, invoking converters against a registry, expanding fan-out
// (one-to-many) and fan-in (many-to-one) stages, and — depending on the
// implementation — admitting intermediate buffers against a memory budget
// and parallelizing element-wise work.
//
// Three implementations ship with the core:
//
//   - Simple: sequential, no admission checks.
//   - Bounded: sequential, every converter output reserved against a budget.
//   - Parallel: element-wise steps of a batch run on a bounded pool;
//     aggregation and expansion points are barriers.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/property"
)

// State is the lifecycle of one plan execution.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Stats summarizes one execution.
type Stats struct {
	// Duration is wall-clock time for the whole plan.
	Duration time.Duration

	// PeakMemory is the largest number of intermediate bytes held live at
	// any point during the run.
	PeakMemory uint64

	// StepsExecuted counts completed plan steps.
	StepsExecuted int
}

// Result is a successful execution's output: a single item or an ordered
// batch (each item carrying its own properties), plus the terminal state and
// run statistics.
type Result struct {
	Items []converter.Item
	Multi bool
	Stats Stats
	State State
}

// Item returns the single output item of a One-cardinality result.
func (r *Result) Item() converter.Item {
	return r.Items[0]
}

// Executor runs a plan against a single input or an input batch. Outputs are
// symmetric with the plan's final cardinality.
type Executor interface {
	Execute(ctx context.Context, plan *planner.Plan, input converter.Item) (*Result, error)
	ExecuteBatch(ctx context.Context, plan *planner.Plan, inputs []converter.Item) (*Result, error)
}

// ErrConversion is layered on top of every converter-originated failure — a
// failed Convert call or a plan step whose converter id is missing — so
// hosts can classify with errors.Is instead of naming concrete error types.
var ErrConversion = errors.New("conversion failed")

// NotFoundError reports a plan step whose converter id is missing from the
// registry the executor resolves against.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("converter %q not found in registry", e.ID)
}

// PlanMismatchError reports runtime properties that do not satisfy a step's
// requires-pattern. It signals planner/runtime drift and never silently
// succeeds.
type PlanMismatchError struct {
	Step        int
	ConverterID string
	Props       *property.Properties
}

func (e *PlanMismatchError) Error() string {
	return fmt.Sprintf("step %d (%s): properties %s do not satisfy the step's requirements",
		e.Step, e.ConverterID, e.Props.String())
}

// HeterogeneousBatchError reports a batch whose items disagree on a
// planning-relevant property.
type HeterogeneousBatchError struct {
	Step        int
	ConverterID string
	Index       int
	Keys        []string
}

func (e *HeterogeneousBatchError) Error() string {
	return fmt.Sprintf("step %d (%s): batch item %d disagrees with the batch on %s",
		e.Step, e.ConverterID, e.Index, strings.Join(e.Keys, ", "))
}

// FailedError wraps a step-local failure: a converter error, a missing
// converter, a matching-guard violation.
type FailedError struct {
	Step  int
	Cause error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("execution failed at step %d: %v", e.Step, e.Cause)
}

func (e *FailedError) Unwrap() error { return e.Cause }

// AbortedError wraps a run-level abort: budget admission denied or
// cancellation observed.
type AbortedError struct {
	Cause error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("execution aborted: %v", e.Cause)
}

func (e *AbortedError) Unwrap() error { return e.Cause }

// Job pairs a plan with one input for independent batch processing.
type Job struct {
	Plan  *planner.Plan
	Input converter.Item
}

// JobResult is the outcome of one job.
type JobResult struct {
	Result *Result
	Err    error
}

// ExecuteJobs runs independent jobs through exec sequentially and returns
// per-job outcomes in input order. Parallel executors fan jobs out instead;
// see Parallel.ExecuteJobs.
func ExecuteJobs(ctx context.Context, exec Executor, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	for i, job := range jobs {
		res, err := exec.Execute(ctx, job.Plan, job.Input)
		results[i] = JobResult{Result: res, Err: err}
	}
	return results
}

// EstimateMemory predicts peak memory for running plan on an input of the
// given size, using typical expansion factors per converter group: audio
// decompresses around 10x, images around 4x, video around 100x, and
// structured-data conversions stay near 1x.
func EstimateMemory(inputSize uint64, plan *planner.Plan) uint64 {
	estimate := inputSize
	for i := range plan.Steps {
		id := plan.Steps[i].ConverterID
		switch {
		case strings.HasPrefix(id, "audio."):
			estimate = saturatingMul(estimate, 10)
		case strings.HasPrefix(id, "image."):
			estimate = saturatingMul(estimate, 4)
		case strings.HasPrefix(id, "video."):
			estimate = saturatingMul(estimate, 100)
		}
	}
	return estimate
}

func saturatingMul(a, b uint64) uint64 {
	if a != 0 && a*b/a != b {
		return ^uint64(0)
	}
	return a * b
}
