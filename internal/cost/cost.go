// Package cost compiles caller-supplied cost expressions into the scoring
// function the planner consumes. Expressions are CEL over the numeric keys a
// converter declares in its costs bag; the core itself only ever sees
// evaluated numbers.
package cost

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"golang.org/x/exp/maps"

	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/property"
)

// ConventionalKeys are the cost keys the CLI documents for converter
// authors. Expressions may reference any declared key; these are always in
// scope.
var ConventionalKeys = []string{"quality_loss", "speed", "size"}

// CompilationError reports a cost expression that failed to parse or
// type-check.
type CompilationError struct {
	Expression string
	Cause      error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile cost expression %q: %v", e.Expression, e.Cause)
}

func (e *CompilationError) Unwrap() error { return e.Cause }

// Expression is a compiled cost expression. Compile once, evaluate per edge.
type Expression struct {
	source  string
	keys    []string
	program cel.Program
}

// Compile builds a CEL program for expr with every key in scope as a double.
// Keys passed here extend ConventionalKeys; duplicates collapse.
func Compile(expr string, extraKeys ...string) (*Expression, error) {
	keySet := make(map[string]struct{}, len(ConventionalKeys)+len(extraKeys))
	for _, k := range ConventionalKeys {
		keySet[k] = struct{}{}
	}
	for _, k := range extraKeys {
		keySet[k] = struct{}{}
	}
	keys := maps.Keys(keySet)

	envOpts := []cel.EnvOption{cel.EagerlyValidateDeclarations(true)}
	for _, k := range keys {
		envOpts = append(envOpts, cel.Variable(k, cel.DoubleType))
	}

	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		return nil, &CompilationError{Expression: expr, Cause: err}
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &CompilationError{Expression: expr, Cause: issues.Err()}
	}
	outType := ast.OutputType().String()
	if outType != cel.DoubleType.String() && outType != cel.IntType.String() {
		return nil, &CompilationError{
			Expression: expr,
			Cause:      fmt.Errorf("expected a numeric result, got %s", ast.OutputType().String()),
		}
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, &CompilationError{Expression: expr, Cause: err}
	}

	return &Expression{source: expr, keys: keys, program: program}, nil
}

// Source returns the original expression text.
func (e *Expression) Source() string { return e.source }

// CostFunc adapts the compiled expression to the planner's scoring hook.
// Keys the converter does not declare evaluate as 0; an evaluation failure
// scores the edge 0, which the planner treats as free rather than failing
// the whole search.
func (e *Expression) CostFunc() planner.CostFunc {
	return func(costs *property.Properties) float64 {
		activation := make(map[string]interface{}, len(e.keys))
		for _, k := range e.keys {
			activation[k] = 0.0
		}
		if costs != nil {
			for _, k := range costs.Keys() {
				if _, declared := activation[k]; !declared {
					continue
				}
				v, _ := costs.Get(k)
				if n, ok := v.Number(); ok {
					activation[k] = n
				}
			}
		}

		out, _, err := e.program.Eval(activation)
		if err != nil {
			return 0
		}
		switch v := out.Value().(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		default:
			return 0
		}
	}
}
