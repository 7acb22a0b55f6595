// Package converter defines the contract between the conversion core and the
// converters it orchestrates: a declarative I/O record plus a byte
// transformation. The core never stores concrete converter types; it resolves
// ids against a registry and dispatches through these interfaces.
package converter

import (
	"context"
	"fmt"

	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/property"
)

// Cardinality states whether a converter side processes a single item or an
// ordered batch.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// Decl is a converter's immutable declarative record. Ids follow the
// documentary convention "{group}.{from}-to-{to}", all lowercase; the core
// treats them as opaque. Costs values are non-negative finite numbers.
type Decl struct {
	ID          string
	Description string
	Requires    *pattern.PropertyPattern
	Produces    *pattern.PropertyPattern
	InputCard   Cardinality
	OutputCard  Cardinality
	Costs       *property.Properties
}

// NewDecl returns a One→One declaration for the common single-item case.
func NewDecl(id string, requires, produces *pattern.PropertyPattern) *Decl {
	return &Decl{
		ID:       id,
		Requires: requires,
		Produces: produces,
		Costs:    property.New(),
	}
}

// WithDescription sets the human description.
func (d *Decl) WithDescription(desc string) *Decl {
	d.Description = desc
	return d
}

// WithCardinality sets the input and output cardinalities.
func (d *Decl) WithCardinality(in, out Cardinality) *Decl {
	d.InputCard = in
	d.OutputCard = out
	return d
}

// WithCost records a named cost figure, e.g. quality_loss or speed.
func (d *Decl) WithCost(key string, value float64) *Decl {
	if d.Costs == nil {
		d.Costs = property.New()
	}
	d.Costs.Set(key, property.Float(value))
	return d
}

// Validate checks the declaration invariants: a non-empty id, well-formed
// requires/produces patterns, and non-negative finite cost values.
func (d *Decl) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("converter declaration missing id")
	}
	if err := d.Requires.Validate(); err != nil {
		return fmt.Errorf("converter %s: requires: %w", d.ID, err)
	}
	if err := d.Produces.Validate(); err != nil {
		return fmt.Errorf("converter %s: produces: %w", d.ID, err)
	}
	if d.Costs != nil {
		for _, key := range d.Costs.Keys() {
			v, _ := d.Costs.Get(key)
			n, ok := v.Number()
			if !ok || n < 0 || n != n || n > 1e308 {
				return fmt.Errorf("converter %s: cost %q must be a non-negative finite number", d.ID, key)
			}
		}
	}
	return nil
}

// Item is one unit of data in flight: a byte payload plus the bag describing
// it. Batches are ordered slices of items.
type Item struct {
	Data  []byte
	Props *property.Properties
}

// Output is the result of a conversion: either a single item or an ordered
// batch of items.
type Output struct {
	items []Item
	multi bool
}

// Single wraps one output item.
func Single(data []byte, props *property.Properties) *Output {
	return &Output{items: []Item{{Data: data, Props: props}}}
}

// Multi wraps an ordered batch of output items.
func Multi(items []Item) *Output {
	return &Output{items: items, multi: true}
}

// IsMulti reports whether the output is a batch.
func (o *Output) IsMulti() bool { return o.multi }

// Items returns the output items in order.
func (o *Output) Items() []Item { return o.items }

// Item returns the single output item. It panics when called on a batch
// output; callers check IsMulti first.
func (o *Output) Item() Item {
	if o.multi {
		panic("converter: Item called on a multi output")
	}
	return o.items[0]
}

// Error reports a failed conversion, keyed by the converter that failed.
type Error struct {
	ID    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("converter %s: %v", e.ID, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Converter is the capability set the core requires from a single-input
// converter. Implementations must be safe for concurrent use and must not
// mutate shared state; output bytes are handed to the executor by move.
type Converter interface {
	Decl() *Decl

	// Convert transforms one input item. The declared output cardinality
	// dictates whether the result is Single or Multi.
	Convert(ctx context.Context, data []byte, props *property.Properties) (*Output, error)
}

// BatchConverter is the contract for Many-input converters: the whole
// current batch arrives in one call, in input order.
type BatchConverter interface {
	Converter

	ConvertBatch(ctx context.Context, items []Item, shared *property.Properties) (*Output, error)
}
