// Package planner searches the converter graph for a minimum-cost route from
// a source property bag to a target pattern. The search is uniform-cost
// (Dijkstra) over a dynamically expanded graph whose nodes are
// (properties, cardinality) states and whose edges are converter
// applications.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cambium-dev/cambium/internal/build"
	"github.com/cambium-dev/cambium/internal/keys"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/property"
	"github.com/cambium-dev/cambium/pkg/registry"
)

var tracer = otel.Tracer("cambium/planner")

var (
	planDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "plan_duration_ms",
		Help:      "Time spent searching for a conversion plan",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 1000},
	})

	statesExpandedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "plan_states_expanded_total",
		Help:      "Number of search states expanded across all plan calls",
	})
)

const (
	// DefaultMaxHops bounds path length; exceeding it yields ErrNoPath.
	DefaultMaxHops = 16

	// DefaultMaxKeys marks bags that grew past this bound as sink states.
	DefaultMaxKeys = 256
)

// ErrNoPath reports that no valid plan reaches the target within the
// configured bounds.
type ErrNoPath struct {
	Source *property.Properties
	Target *pattern.PropertyPattern
}

func (e *ErrNoPath) Error() string {
	return fmt.Sprintf("no conversion path from %s to %s", e.Source.String(), e.Target.String())
}

// CostFunc scores a converter edge from its declared costs bag. The planner
// clamps results to be non-negative. A nil CostFunc scores every hop as 1.
type CostFunc func(costs *property.Properties) float64

// Config bounds and parameterizes a search.
type Config struct {
	// MaxHops limits plan length. Zero means DefaultMaxHops.
	MaxHops int

	// MaxKeys marks property bags above this size as sink states.
	// Zero means DefaultMaxKeys.
	MaxKeys int

	// Cost scores edges; nil scores each hop as 1.
	Cost CostFunc
}

// Planner plans conversion routes against a sealed registry.
type Planner struct {
	registry *registry.Registry
	cfg      Config
}

// New returns a planner over reg. The registry must not be mutated while the
// planner is in use.
func New(reg *registry.Registry, cfg Config) *Planner {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultMaxHops
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	return &Planner{registry: reg, cfg: cfg}
}

// node is one frontier entry: a reachable state plus the cheapest known path
// into it at the time it was pushed.
type node struct {
	props *property.Properties
	card  converter.Cardinality
	cost  float64
	steps []PlanStep
}

func (n *node) hops() int { return len(n.steps) }

// pathLess orders two equal-cost paths: fewer hops first, then the
// lexicographically smaller sequence of converter ids. This is the planner's
// tie-breaking discipline; with the registry iterated in id order it makes
// planning fully deterministic.
func pathLess(a, b *node) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.hops() != b.hops() {
		return a.hops() < b.hops()
	}
	for i := 0; i < a.hops() && i < b.hops(); i++ {
		if a.steps[i].ConverterID != b.steps[i].ConverterID {
			return a.steps[i].ConverterID < b.steps[i].ConverterID
		}
	}
	return false
}

func nodeComparator(x, y interface{}) int {
	a, b := x.(*node), y.(*node)
	if pathLess(a, b) {
		return -1
	}
	if pathLess(b, a) {
		return 1
	}
	return 0
}

// Plan searches for a minimum-cost route from source to target. It returns
// ErrNoPath when the target is unreachable within the hop and bag-size
// bounds, and the context's error when cancelled mid-search.
func (p *Planner) Plan(ctx context.Context, source *property.Properties, target *pattern.PropertyPattern, inCard, outCard converter.Cardinality) (*Plan, error) {
	ctx, span := tracer.Start(ctx, "Plan", trace.WithAttributes(
		attribute.String("source", source.String()),
		attribute.String("target", target.String()),
	))
	defer span.End()

	if err := target.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		planDurationHistogram.Observe(float64(time.Since(start).Milliseconds()))
	}()

	frontier := binaryheap.NewWith(nodeComparator)
	frontier.Push(&node{props: source.Clone(), card: inCard})

	visited := make(map[uint64]struct{})

	for !frontier.Empty() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v, _ := frontier.Pop()
		current := v.(*node)

		key := stateKey(current.props, current.card)
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}
		statesExpandedCounter.Inc()

		// A source that already satisfies the target yields a zero-step
		// plan; executing one returns the input unchanged.
		if target.Matches(current.props) && current.card == outCard {
			span.SetAttributes(
				attribute.Int("plan.hops", current.hops()),
				attribute.Float64("plan.cost", current.cost),
			)
			return &Plan{
				Steps:      current.steps,
				FinalProps: current.props,
				TotalCost:  current.cost,
			}, nil
		}

		if current.hops() >= p.cfg.MaxHops {
			continue
		}
		// Pathologically grown bags become sink states.
		if current.props.Len() > p.cfg.MaxKeys {
			continue
		}

		for _, conv := range p.registry.CandidatesFrom(current.props) {
			decl := conv.Decl()

			nextCard, ok := transition(current.card, decl)
			if !ok {
				continue
			}

			nextProps := decl.Produces.Apply(current.props)
			step := PlanStep{
				ConverterID: decl.ID,
				InputProps:  current.props,
				OutputProps: nextProps,
				InputCard:   current.card,
				OutputCard:  nextCard,
			}

			steps := make([]PlanStep, current.hops()+1)
			copy(steps, current.steps)
			steps[current.hops()] = step

			frontier.Push(&node{
				props: nextProps,
				card:  nextCard,
				cost:  current.cost + p.score(decl),
				steps: steps,
			})
		}
	}

	return nil, &ErrNoPath{Source: source, Target: target}
}

// transition computes the symbolic cardinality after applying decl in a
// state with cardinality card. A One-input converter under a Many context
// runs element-wise and the context stays Many; a Many-input converter in a
// One context has no batch to consume.
func transition(card converter.Cardinality, decl *converter.Decl) (converter.Cardinality, bool) {
	switch {
	case card == converter.One && decl.InputCard == converter.One:
		return decl.OutputCard, true
	case card == converter.Many && decl.InputCard == converter.Many:
		return decl.OutputCard, true
	case card == converter.Many && decl.InputCard == converter.One:
		return converter.Many, true
	default:
		return 0, false
	}
}

func (p *Planner) score(decl *converter.Decl) float64 {
	if p.cfg.Cost == nil {
		return 1
	}
	s := p.cfg.Cost(decl.Costs)
	if s < 0 {
		return 0
	}
	return s
}

func stateKey(props *property.Properties, card converter.Cardinality) uint64 {
	return keys.StateKey(props, card.String())
}
