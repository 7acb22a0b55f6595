// Package property implements the typed scalar values and ordered property
// bags that describe data flowing through a conversion pipeline. A bag is an
// insertion-ordered map from string keys to tagged scalars; ordering makes
// display and canonical hashing deterministic.
package property

import (
	"strings"
)

// Well-known keys understood across the core. Every other key is opaque and
// carried through plan execution unchanged unless a converter overwrites it.
const (
	KeyFormat = "format"
	KeyPath   = "path"
)

// Properties is an ordered mapping from string keys to values. Lookup is by
// key; iteration follows insertion order. The zero value is ready to use.
type Properties struct {
	keys  []string
	index map[string]Value
}

// New returns an empty bag.
func New() *Properties {
	return &Properties{index: make(map[string]Value)}
}

// NewFormat returns a bag containing only a format key. Most conversions
// start from one of these.
func NewFormat(format string) *Properties {
	return New().With(KeyFormat, String(format))
}

// Len reports the number of entries.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Get returns the value stored under key.
func (p *Properties) Get(key string) (Value, bool) {
	if p == nil || p.index == nil {
		return Value{}, false
	}
	v, ok := p.index[key]
	return v, ok
}

// GetString returns the string stored under key, if the key holds a string.
func (p *Properties) GetString(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Format returns the well-known format key, or "" when absent.
func (p *Properties) Format() string {
	s, _ := p.GetString(KeyFormat)
	return s
}

// Has reports whether key is present.
func (p *Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Set stores value under key, preserving the key's existing position when it
// is already present and appending otherwise.
func (p *Properties) Set(key string, value Value) {
	if p.index == nil {
		p.index = make(map[string]Value)
	}
	if _, exists := p.index[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.index[key] = value
}

// With stores value under key and returns the bag for chaining.
func (p *Properties) With(key string, value Value) *Properties {
	p.Set(key, value)
	return p
}

// Delete removes key if present.
func (p *Properties) Delete(key string) {
	if p == nil || p.index == nil {
		return
	}
	if _, ok := p.index[key]; !ok {
		return
	}
	delete(p.index, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is a copy.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Clone returns an independent copy of the bag. Bags are expected to stay
// small (< 64 entries), so copying across plan steps is cheap.
func (p *Properties) Clone() *Properties {
	out := &Properties{
		keys:  make([]string, len(p.keys)),
		index: make(map[string]Value, len(p.index)),
	}
	copy(out.keys, p.keys)
	for k, v := range p.index {
		out.index[k] = v
	}
	return out
}

// Equal reports whether two bags hold the same entries, regardless of
// insertion order.
func (p *Properties) Equal(o *Properties) bool {
	if p.Len() != o.Len() {
		return false
	}
	for _, k := range p.keys {
		ov, ok := o.Get(k)
		if !ok || !p.index[k].Equal(ov) {
			return false
		}
	}
	return true
}

// String renders the bag as {k1=v1, k2=v2, …} in insertion order.
func (p *Properties) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(p.index[k].String())
	}
	sb.WriteByte('}')
	return sb.String()
}
