package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cambium-dev/cambium/pkg/budget"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/property"
	"github.com/cambium-dev/cambium/pkg/registry"
)

// fakeConverter lets each test script converter behavior. It deliberately
// does not implement converter.BatchConverter; fakeBatchConverter below adds
// that so tests can control whether a converter supports batch conversion.
type fakeConverter struct {
	decl      *converter.Decl
	convertFn func(ctx context.Context, data []byte, props *property.Properties) (*converter.Output, error)
}

func (f *fakeConverter) Decl() *converter.Decl { return f.decl }

func (f *fakeConverter) Convert(ctx context.Context, data []byte, props *property.Properties) (*converter.Output, error) {
	return f.convertFn(ctx, data, props)
}

// fakeBatchConverter adds ConvertBatch support on top of fakeConverter.
type fakeBatchConverter struct {
	*fakeConverter
	batchFn func(ctx context.Context, items []converter.Item, shared *property.Properties) (*converter.Output, error)
}

func (f *fakeBatchConverter) ConvertBatch(ctx context.Context, items []converter.Item, shared *property.Properties) (*converter.Output, error) {
	return f.batchFn(ctx, items, shared)
}

// identity rewrites the format key and passes bytes through.
func identity(id, from, to string) *fakeConverter {
	return &fakeConverter{
		decl: converter.NewDecl(id, pattern.Format(from), pattern.Format(to)),
		convertFn: func(_ context.Context, data []byte, props *property.Properties) (*converter.Output, error) {
			return converter.Single(data, props.Clone().With(property.KeyFormat, property.String(to))), nil
		},
	}
}

func newRegistry(t *testing.T, convs ...converter.Converter) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, c := range convs {
		require.NoError(t, reg.Register(c))
	}
	return reg
}

// planFor builds the plan a planner would return for a linear chain.
func planFor(source *property.Properties, convs ...converter.Converter) *planner.Plan {
	props := source
	plan := &planner.Plan{}
	card := converter.One
	for _, c := range convs {
		decl := c.Decl()
		next := decl.Produces.Apply(props)
		outCard := decl.OutputCard
		if card == converter.Many && decl.InputCard == converter.One {
			outCard = converter.Many
		}
		plan.Steps = append(plan.Steps, planner.PlanStep{
			ConverterID: decl.ID,
			InputProps:  props,
			OutputProps: next,
			InputCard:   card,
			OutputCard:  outCard,
		})
		props = next
		card = outCard
	}
	plan.FinalProps = props
	plan.TotalCost = float64(len(convs))
	return plan
}

func item(data, format string) converter.Item {
	return converter.Item{Data: []byte(data), Props: property.NewFormat(format)}
}

func TestSimpleExecuteChain(t *testing.T) {
	aToB := identity("test.a-to-b", "a", "b")
	bToC := identity("test.b-to-c", "b", "c")
	reg := newRegistry(t, aToB, bToC)

	exec := NewSimple(reg)
	plan := planFor(property.NewFormat("a"), aToB, bToC)

	result, err := exec.Execute(context.Background(), plan, item("payload", "a"))
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, result.State)
	require.Equal(t, []byte("payload"), result.Item().Data)
	require.Equal(t, "c", result.Item().Props.Format())
	require.Equal(t, 2, result.Stats.StepsExecuted)
}

func TestExecuteEmptyPlan(t *testing.T) {
	reg := newRegistry(t)
	exec := NewSimple(reg)

	source := property.NewFormat("a")
	plan := &planner.Plan{FinalProps: source}

	result, err := exec.Execute(context.Background(), plan, item("unchanged", "a"))
	require.NoError(t, err)
	require.Equal(t, []byte("unchanged"), result.Item().Data)
	require.Equal(t, 0, result.Stats.StepsExecuted)
}

func TestConverterNotFound(t *testing.T) {
	reg := newRegistry(t)
	exec := NewSimple(reg)

	plan := &planner.Plan{Steps: []planner.PlanStep{{ConverterID: "missing.id"}}}
	_, err := exec.Execute(context.Background(), plan, item("x", "a"))

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, 0, failed.Step)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "missing.id", notFound.ID)
	require.ErrorIs(t, err, ErrConversion)
}

func TestConverterErrorCarriesStepIndex(t *testing.T) {
	aToB := identity("test.a-to-b", "a", "b")
	boom := &fakeConverter{
		decl: converter.NewDecl("test.b-to-c", pattern.Format("b"), pattern.Format("c")),
		convertFn: func(context.Context, []byte, *property.Properties) (*converter.Output, error) {
			return nil, fmt.Errorf("decode failure")
		},
	}
	reg := newRegistry(t, aToB, boom)
	exec := NewSimple(reg)

	_, err := exec.Execute(context.Background(), planFor(property.NewFormat("a"), aToB, boom), item("x", "a"))

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, 1, failed.Step)

	var convErr *converter.Error
	require.ErrorAs(t, err, &convErr)
	require.Equal(t, "test.b-to-c", convErr.ID)
	require.ErrorIs(t, err, ErrConversion)
}

func TestPlanMismatch(t *testing.T) {
	bToC := identity("test.b-to-c", "b", "c")
	reg := newRegistry(t, bToC)
	exec := NewSimple(reg)

	// runtime input claims format a; the step requires b
	plan := planFor(property.NewFormat("b"), bToC)
	_, err := exec.Execute(context.Background(), plan, item("x", "a"))

	var mismatch *PlanMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 0, mismatch.Step)
	require.Equal(t, "test.b-to-c", mismatch.ConverterID)
}

func splitter(id, from string) *fakeConverter {
	decl := converter.NewDecl(id, pattern.Format(from), pattern.Format("raw"))
	decl.WithCardinality(converter.One, converter.Many)
	return &fakeConverter{
		decl: decl,
		convertFn: func(_ context.Context, data []byte, props *property.Properties) (*converter.Output, error) {
			var items []converter.Item
			for i, part := range bytes.Split(data, []byte(",")) {
				memberProps := props.Clone().
					With(property.KeyFormat, property.String("raw")).
					With(property.KeyPath, property.String(fmt.Sprintf("part-%d", i)))
				items = append(items, converter.Item{Data: part, Props: memberProps})
			}
			return converter.Multi(items), nil
		},
	}
}

func concatenator(id, to string) *fakeBatchConverter {
	decl := converter.NewDecl(id, pattern.New(), pattern.Format(to))
	decl.WithCardinality(converter.Many, converter.One)
	return &fakeBatchConverter{
		fakeConverter: &fakeConverter{decl: decl},
		batchFn: func(_ context.Context, items []converter.Item, shared *property.Properties) (*converter.Output, error) {
			var buf bytes.Buffer
			for _, it := range items {
				buf.Write(it.Data)
			}
			return converter.Single(buf.Bytes(), shared.Clone().With(property.KeyFormat, property.String(to))), nil
		},
	}
}

func TestFanOutThenElementWise(t *testing.T) {
	split := splitter("test.csv-to-parts", "csv")
	upper := &fakeConverter{
		decl: converter.NewDecl("test.raw-to-tagged", pattern.Format("raw"), pattern.Format("tagged")),
		convertFn: func(_ context.Context, data []byte, props *property.Properties) (*converter.Output, error) {
			out := append([]byte("<"), data...)
			out = append(out, '>')
			return converter.Single(out, props.Clone().With(property.KeyFormat, property.String("tagged"))), nil
		},
	}
	reg := newRegistry(t, split, upper)
	exec := NewSimple(reg)

	plan := planFor(property.NewFormat("csv"), split, upper)
	res, err := exec.Execute(context.Background(), plan, item("a,b,c", "csv"))
	require.NoError(t, err)
	require.True(t, res.Multi)
	require.Len(t, res.Items, 3)

	// fan-out order is preserved through the element-wise step
	var got []string
	for _, it := range res.Items {
		got = append(got, string(it.Data))
	}
	require.Equal(t, []string{"<a>", "<b>", "<c>"}, got)
}

func TestFanInPreservesBatchOrder(t *testing.T) {
	concat := concatenator("test.parts-to-blob", "blob")
	reg := newRegistry(t, concat)
	exec := NewSimple(reg)

	plan := &planner.Plan{Steps: []planner.PlanStep{{
		ConverterID: "test.parts-to-blob",
		InputProps:  property.NewFormat("raw"),
		InputCard:   converter.Many,
		OutputCard:  converter.One,
	}}}

	inputs := []converter.Item{item("a", "raw"), item("b", "raw"), item("c", "raw")}
	result, err := exec.ExecuteBatch(context.Background(), plan, inputs)
	require.NoError(t, err)
	require.False(t, result.Multi)
	require.Equal(t, []byte("abc"), result.Item().Data)
}

func TestHeterogeneousBatch(t *testing.T) {
	upper := identity("test.raw-to-tagged", "raw", "tagged")
	reg := newRegistry(t, upper)
	exec := NewSimple(reg)

	plan := &planner.Plan{Steps: []planner.PlanStep{{
		ConverterID: "test.raw-to-tagged",
		InputProps:  property.NewFormat("raw"),
		InputCard:   converter.Many,
		OutputCard:  converter.Many,
	}}}

	inputs := []converter.Item{item("a", "raw"), item("b", "png"), item("c", "raw")}
	_, err := exec.ExecuteBatch(context.Background(), plan, inputs)

	var hetero *HeterogeneousBatchError
	require.ErrorAs(t, err, &hetero)
	require.Equal(t, 1, hetero.Index)
	require.Equal(t, []string{"format"}, hetero.Keys)
}

func TestBoundedBudgetDenial(t *testing.T) {
	big := &fakeConverter{
		decl: converter.NewDecl("test.a-to-b", pattern.Format("a"), pattern.Format("b")),
		convertFn: func(_ context.Context, _ []byte, props *property.Properties) (*converter.Output, error) {
			return converter.Single(make([]byte, 2<<20), props.Clone().With(property.KeyFormat, property.String("b"))), nil
		},
	}
	reg := newRegistry(t, big)
	b := budget.New(1 << 20)
	exec := NewBounded(reg, b)

	_, err := exec.Execute(context.Background(), planFor(property.NewFormat("a"), big), item("x", "a"))

	var aborted *AbortedError
	require.ErrorAs(t, err, &aborted)
	var exceeded *budget.ExceededError
	require.ErrorAs(t, err, &exceeded)
	require.Equal(t, uint64(2<<20), exceeded.Requested)
	require.Equal(t, uint64(1<<20), exceeded.Available)

	// no partial output is observable and nothing stays reserved
	require.Equal(t, uint64(0), b.Outstanding())
}

func TestBoundedReleasesPermitsAcrossSteps(t *testing.T) {
	b := budget.New(100)

	var midStep uint64
	aToB := identity("test.a-to-b", "a", "b")
	probe := &fakeConverter{
		decl: converter.NewDecl("test.b-to-c", pattern.Format("b"), pattern.Format("c")),
		convertFn: func(_ context.Context, data []byte, props *property.Properties) (*converter.Output, error) {
			midStep = b.Outstanding()
			return converter.Single(data, props.Clone().With(property.KeyFormat, property.String("c"))), nil
		},
	}
	reg := newRegistry(t, aToB, probe)
	exec := NewBounded(reg, b)

	result, err := exec.Execute(context.Background(), planFor(property.NewFormat("a"), aToB, probe), item("xyzzy", "a"))
	require.NoError(t, err)
	require.Equal(t, []byte("xyzzy"), result.Item().Data)

	// step 1's 5-byte intermediate was reserved while step 2 ran
	require.Equal(t, uint64(5), midStep)
	require.Equal(t, uint64(0), b.Outstanding())
}

func TestCancellationBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	first := &fakeConverter{
		decl: converter.NewDecl("test.a-to-b", pattern.Format("a"), pattern.Format("b")),
		convertFn: func(_ context.Context, data []byte, props *property.Properties) (*converter.Output, error) {
			calls++
			// the host flips the flag while step 1 is in flight
			cancel()
			return converter.Single(data, props.Clone().With(property.KeyFormat, property.String("b"))), nil
		},
	}
	second := identity("test.b-to-c", "b", "c")
	reg := newRegistry(t, first, second)
	exec := NewSimple(reg)

	_, err := exec.Execute(ctx, planFor(property.NewFormat("a"), first, second), item("x", "a"))

	var aborted *AbortedError
	require.ErrorAs(t, err, &aborted)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestExecuteJobs(t *testing.T) {
	aToB := identity("test.a-to-b", "a", "b")
	reg := newRegistry(t, aToB)
	exec := NewSimple(reg)

	plan := planFor(property.NewFormat("a"), aToB)
	jobs := []Job{
		{Plan: plan, Input: item("one", "a")},
		{Plan: plan, Input: item("two", "a")},
		{Plan: plan, Input: item("three", "a")},
	}

	results := ExecuteJobs(context.Background(), exec, jobs)
	require.Len(t, results, 3)
	for i, want := range []string{"one", "two", "three"} {
		require.NoError(t, results[i].Err)
		require.Equal(t, []byte(want), results[i].Result.Item().Data)
	}
}

func TestEstimateMemory(t *testing.T) {
	plan := &planner.Plan{Steps: []planner.PlanStep{
		{ConverterID: "audio.mp3-to-wav"},
		{ConverterID: "serde.json-to-yaml"},
	}}
	require.Equal(t, uint64(10000), EstimateMemory(1000, plan))

	imagePlan := &planner.Plan{Steps: []planner.PlanStep{{ConverterID: "image.png-to-rgb"}}}
	require.Equal(t, uint64(4000), EstimateMemory(1000, imagePlan))
}

func TestStatsTrackPeakMemory(t *testing.T) {
	grow := &fakeConverter{
		decl: converter.NewDecl("test.a-to-b", pattern.Format("a"), pattern.Format("b")),
		convertFn: func(_ context.Context, data []byte, props *property.Properties) (*converter.Output, error) {
			return converter.Single(bytes.Repeat(data, 3), props.Clone().With(property.KeyFormat, property.String("b"))), nil
		},
	}
	reg := newRegistry(t, grow)
	exec := NewSimple(reg)

	result, err := exec.Execute(context.Background(), planFor(property.NewFormat("a"), grow), item("abcd", "a"))
	require.NoError(t, err)
	// input (4) and output (12) are both live while the step runs
	require.Equal(t, uint64(16), result.Stats.PeakMemory)
	require.True(t, result.Stats.Duration >= 0*time.Millisecond)
}

func TestManyInputWithoutBatchImplementation(t *testing.T) {
	decl := converter.NewDecl("test.parts-to-blob", pattern.New(), pattern.Format("blob"))
	decl.WithCardinality(converter.Many, converter.One)
	notBatch := &fakeConverter{
		decl: decl,
		convertFn: func(_ context.Context, data []byte, props *property.Properties) (*converter.Output, error) {
			return converter.Single(data, props), nil
		},
	}
	reg := newRegistry(t, notBatch)
	exec := NewSimple(reg)

	plan := &planner.Plan{Steps: []planner.PlanStep{{
		ConverterID: "test.parts-to-blob",
		InputProps:  property.NewFormat("raw"),
		InputCard:   converter.Many,
		OutputCard:  converter.One,
	}}}

	_, err := exec.ExecuteBatch(context.Background(), plan, []converter.Item{item("a", "raw")})
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	require.Contains(t, err.Error(), "does not implement batch conversion")
}

func TestFailedAndAbortedUnwrap(t *testing.T) {
	inner := errors.New("cause")
	require.ErrorIs(t, &FailedError{Step: 1, Cause: inner}, inner)
	require.ErrorIs(t, &AbortedError{Cause: inner}, inner)
}
