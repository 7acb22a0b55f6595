// Package registry holds the set of converters available to the planner,
// keyed by id. A registry is populated before planning begins and treated as
// read-only thereafter; it lends converters out by reference and never owns
// byte buffers.
package registry

import (
	"fmt"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/property"
)

// ErrDuplicateID reports an attempt to register a second converter under an
// id the registry already holds.
type ErrDuplicateID struct {
	ID string
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("duplicate converter id %q", e.ID)
}

// Registry is a keyed collection of converters. Iteration order is id order,
// which keeps candidate enumeration — and therefore planning — deterministic.
// Not safe for concurrent mutation; seal it before handing it to a planner.
type Registry struct {
	byID *redblacktree.Tree
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byID: redblacktree.NewWithStringComparator(),
	}
}

// Register adds a converter. It fails with ErrDuplicateID when a converter
// with the same id is already present, and rejects declarations that do not
// validate (bad regexes, negative costs).
func (r *Registry) Register(conv converter.Converter) error {
	decl := conv.Decl()
	if err := decl.Validate(); err != nil {
		return err
	}
	if _, found := r.byID.Get(decl.ID); found {
		return &ErrDuplicateID{ID: decl.ID}
	}
	r.byID.Put(decl.ID, conv)
	return nil
}

// MustRegister is Register for wiring code where a failure is a programming
// error.
func (r *Registry) MustRegister(conv converter.Converter) {
	if err := r.Register(conv); err != nil {
		panic(err)
	}
}

// Get returns the converter stored under id.
func (r *Registry) Get(id string) (converter.Converter, bool) {
	v, found := r.byID.Get(id)
	if !found {
		return nil, false
	}
	return v.(converter.Converter), true
}

// Len reports the number of registered converters.
func (r *Registry) Len() int {
	return r.byID.Size()
}

// All returns every converter in ascending id order.
func (r *Registry) All() []converter.Converter {
	out := make([]converter.Converter, 0, r.byID.Size())
	it := r.byID.Iterator()
	for it.Next() {
		out = append(out, it.Value().(converter.Converter))
	}
	return out
}

// CandidatesFrom returns, in ascending id order, the converters whose
// requires-pattern matches props.
func (r *Registry) CandidatesFrom(props *property.Properties) []converter.Converter {
	var out []converter.Converter
	it := r.byID.Iterator()
	for it.Next() {
		conv := it.Value().(converter.Converter)
		if conv.Decl().Requires.Matches(props) {
			out = append(out, conv)
		}
	}
	return out
}
