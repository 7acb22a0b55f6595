// Package workflow runs declarative multi-stage pipelines: a source file,
// an ordered list of target stages, and a sink. Each stage is planned and
// executed independently, with the residual properties of one stage feeding
// the next, so a workflow survives registry changes as long as some route
// still exists per stage.
package workflow

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/executor"
	"github.com/cambium-dev/cambium/pkg/logger"
	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/property"
)

// Source declares where a workflow's input comes from and what format it is
// in. An empty format means the host sniffs it.
type Source struct {
	Path   string `json:"path"`
	Format string `json:"format,omitempty"`
}

// Step is one intermediate stage: the format the data must reach before the
// next stage runs.
type Step struct {
	Name   string `json:"name,omitempty"`
	Format string `json:"format"`
}

// Sink declares where the final output goes.
type Sink struct {
	Path   string `json:"path"`
	Format string `json:"format,omitempty"`
}

// Workflow is a named source → steps → sink pipeline.
type Workflow struct {
	Name   string `json:"name"`
	Source Source `json:"source"`
	Steps  []Step `json:"steps,omitempty"`
	Sink   Sink   `json:"sink"`
}

// Error reports a workflow that failed to validate or run.
type Error struct {
	Workflow string
	Stage    string
	Cause    error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("workflow %s: stage %s: %v", e.Workflow, e.Stage, e.Cause)
	}
	return fmt.Sprintf("workflow %s: %v", e.Workflow, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Parse decodes a YAML (or JSON) workflow document and validates it.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("malformed workflow: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Load reads and parses a workflow file.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Validate checks structural invariants: a name, a source path, a sink path,
// at least one stage (a step or a sink format), and a format on every step.
// It does not check that any stage is reachable; that surfaces when Run plans.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return &Error{Workflow: "(unnamed)", Cause: fmt.Errorf("missing name")}
	}
	if w.Source.Path == "" {
		return &Error{Workflow: w.Name, Cause: fmt.Errorf("source has no path")}
	}
	if w.Sink.Path == "" {
		return &Error{Workflow: w.Name, Cause: fmt.Errorf("sink has no path")}
	}
	if w.Sink.Format == "" && len(w.Steps) == 0 {
		return &Error{Workflow: w.Name, Cause: fmt.Errorf("no steps and no sink format; nothing to do")}
	}
	for i, step := range w.Steps {
		if step.Format == "" {
			return &Error{Workflow: w.Name, Stage: stageName(step, i), Cause: fmt.Errorf("step has no format")}
		}
	}
	return nil
}

// Marshal renders the workflow back to YAML.
func (w *Workflow) Marshal() ([]byte, error) {
	return yaml.Marshal(w)
}

// stages returns the ordered target formats: every step, then the sink
// format when it differs from the last step.
func (w *Workflow) stages() []string {
	var out []string
	for _, s := range w.Steps {
		out = append(out, s.Format)
	}
	if w.Sink.Format != "" && (len(out) == 0 || out[len(out)-1] != w.Sink.Format) {
		out = append(out, w.Sink.Format)
	}
	return out
}

func stageName(s Step, i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("step-%d", i)
}

// Runner executes workflows with a planner and an executor.
type Runner struct {
	planner  *planner.Planner
	executor executor.Executor
	logger   logger.Logger
}

// NewRunner wires a workflow runner. A nil log defaults to noop.
func NewRunner(p *planner.Planner, exec executor.Executor, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Runner{planner: p, executor: exec, logger: log}
}

// Run plans and executes every stage of w over input, returning the final
// stage's result. The input bag must describe the source data; residual
// properties chain between stages.
func (r *Runner) Run(ctx context.Context, w *Workflow, input converter.Item) (*executor.Result, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	r.logger.InfoWithContext(ctx, "workflow started",
		zap.String("workflow", w.Name),
		zap.String("run_id", runID),
		zap.Int("stages", len(w.stages())),
	)

	current := input
	var result *executor.Result
	for i, target := range w.stages() {
		stage := fmt.Sprintf("stage-%d(%s)", i, target)

		plan, err := r.planner.Plan(ctx, current.Props, pattern.Format(target), converter.One, converter.One)
		if err != nil {
			return nil, &Error{Workflow: w.Name, Stage: stage, Cause: err}
		}

		result, err = r.executor.Execute(ctx, plan, current)
		if err != nil {
			return nil, &Error{Workflow: w.Name, Stage: stage, Cause: err}
		}
		current = result.Item()
	}

	r.logger.InfoWithContext(ctx, "workflow finished",
		zap.String("workflow", w.Name),
		zap.String("run_id", runID),
		zap.String("format", currentFormat(current.Props)),
	)
	return result, nil
}

func currentFormat(props *property.Properties) string {
	return props.Format()
}
