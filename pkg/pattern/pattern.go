// Package pattern implements constraint expressions over property bags. A
// pattern is an ordered conjunction of constraints; it matches a bag iff
// every constraint holds. Patterns double as output descriptions: applied to
// a bag, the Eq and Absent constraints of a produces-pattern rewrite it into
// the post-step bag.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cambium-dev/cambium/pkg/property"
)

// Op identifies a constraint kind.
type Op int

const (
	OpEq Op = iota
	OpNotEq
	OpIn
	OpPresent
	OpAbsent
	OpRegex
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpNotEq:
		return "neq"
	case OpIn:
		return "in"
	case OpPresent:
		return "present"
	case OpAbsent:
		return "absent"
	case OpRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// InvalidRegexError reports a regex constraint that failed to compile.
type InvalidRegexError struct {
	Key     string
	Pattern string
	Cause   error
}

func (e *InvalidRegexError) Error() string {
	return fmt.Sprintf("invalid regex for key %q: %q: %v", e.Key, e.Pattern, e.Cause)
}

func (e *InvalidRegexError) Unwrap() error { return e.Cause }

// Constraint is a single predicate over one key of a property bag.
type Constraint struct {
	Op    Op
	Key   string
	Value property.Value
	Set   []property.Value

	// compiled regex, anchored; nil unless Op == OpRegex
	re     *regexp.Regexp
	source string
}

// PropertyPattern is an ordered conjunction of constraints. The zero value
// and Any() both match every bag. Builder methods return the receiver so
// patterns read as chains:
//
//	pattern.New().Eq("format", property.String("json"))
type PropertyPattern struct {
	constraints []Constraint
	compileErr  error
}

// New returns an empty pattern, which matches everything.
func New() *PropertyPattern {
	return &PropertyPattern{}
}

// Any is an alias for New, named for call sites where "match all" is the
// point rather than a starting state.
func Any() *PropertyPattern {
	return New()
}

// Format is shorthand for New().Eq("format", property.String(format)).
func Format(format string) *PropertyPattern {
	return New().Eq(property.KeyFormat, property.String(format))
}

// Eq appends an equality constraint. In a produces-pattern, Eq doubles as
// "will set key to value".
func (p *PropertyPattern) Eq(key string, value property.Value) *PropertyPattern {
	p.constraints = append(p.constraints, Constraint{Op: OpEq, Key: key, Value: value})
	return p
}

// NotEq appends an inequality constraint. An absent key satisfies NotEq,
// which lets "format is not x" plan through unknown-format inputs.
func (p *PropertyPattern) NotEq(key string, value property.Value) *PropertyPattern {
	p.constraints = append(p.constraints, Constraint{Op: OpNotEq, Key: key, Value: value})
	return p
}

// In appends a set-membership constraint.
func (p *PropertyPattern) In(key string, values ...property.Value) *PropertyPattern {
	p.constraints = append(p.constraints, Constraint{Op: OpIn, Key: key, Set: values})
	return p
}

// Present appends a key-existence constraint.
func (p *PropertyPattern) Present(key string) *PropertyPattern {
	p.constraints = append(p.constraints, Constraint{Op: OpPresent, Key: key})
	return p
}

// Absent appends a key-absence constraint. In a produces-pattern, Absent
// doubles as "will remove key".
func (p *PropertyPattern) Absent(key string) *PropertyPattern {
	p.constraints = append(p.constraints, Constraint{Op: OpAbsent, Key: key})
	return p
}

// Regex appends a full-match (anchored) regex constraint over a string key.
// The expression compiles here, not at match time; a compile failure is
// remembered and surfaced by Validate, and the broken constraint never
// matches.
func (p *PropertyPattern) Regex(key, expr string) *PropertyPattern {
	c := Constraint{Op: OpRegex, Key: key, source: expr}
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		if p.compileErr == nil {
			p.compileErr = &InvalidRegexError{Key: key, Pattern: expr, Cause: err}
		}
	} else {
		c.re = re
	}
	p.constraints = append(p.constraints, c)
	return p
}

// Validate returns the first regex compile error recorded by the builder,
// or nil when every constraint is well formed.
func (p *PropertyPattern) Validate() error {
	return p.compileErr
}

// Len reports the number of constraints.
func (p *PropertyPattern) Len() int {
	if p == nil {
		return 0
	}
	return len(p.constraints)
}

// Constraints returns the constraints in declaration order. The slice is a
// copy; the compiled regexes inside are shared.
func (p *PropertyPattern) Constraints() []Constraint {
	out := make([]Constraint, len(p.constraints))
	copy(out, p.constraints)
	return out
}

// Keys returns the distinct keys referenced by the pattern, in first-use
// order. The executor's batch-homogeneity guard compares items on these.
func (p *PropertyPattern) Keys() []string {
	seen := make(map[string]struct{}, len(p.constraints))
	var out []string
	for _, c := range p.constraints {
		if _, ok := seen[c.Key]; ok {
			continue
		}
		seen[c.Key] = struct{}{}
		out = append(out, c.Key)
	}
	return out
}

// Matches reports whether every constraint holds against props. Constraints
// evaluate in declaration order; the result is order-independent. A regex
// constraint that failed to compile never matches.
func (p *PropertyPattern) Matches(props *property.Properties) bool {
	if p == nil {
		return true
	}
	for i := range p.constraints {
		if !p.constraints[i].holds(props) {
			return false
		}
	}
	return true
}

func (c *Constraint) holds(props *property.Properties) bool {
	v, ok := props.Get(c.Key)
	switch c.Op {
	case OpEq:
		return ok && v.Equal(c.Value)
	case OpNotEq:
		return !ok || !v.Equal(c.Value)
	case OpIn:
		if !ok {
			return false
		}
		for _, candidate := range c.Set {
			if v.Equal(candidate) {
				return true
			}
		}
		return false
	case OpPresent:
		return ok
	case OpAbsent:
		return !ok
	case OpRegex:
		if c.re == nil || !ok {
			return false
		}
		s, isStr := v.AsString()
		return isStr && c.re.MatchString(s)
	}
	return false
}

// Apply derives the post-step bag a produces-pattern describes: starting
// from a copy of props, every Eq sets its key and every Absent removes it.
// NotEq, In, Regex and Present do not set anything.
func (p *PropertyPattern) Apply(props *property.Properties) *property.Properties {
	out := props.Clone()
	if p == nil {
		return out
	}
	for i := range p.constraints {
		c := &p.constraints[i]
		switch c.Op {
		case OpEq:
			out.Set(c.Key, c.Value)
		case OpAbsent:
			out.Delete(c.Key)
		}
	}
	return out
}

// String renders the pattern for display, e.g. [format=json path~=".*\\.json"]
// (regex sources are Go-quoted, so backslashes appear doubled).
func (p *PropertyPattern) String() string {
	if p.Len() == 0 {
		return "[any]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i := range p.constraints {
		c := &p.constraints[i]
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch c.Op {
		case OpEq:
			fmt.Fprintf(&sb, "%s=%s", c.Key, c.Value.String())
		case OpNotEq:
			fmt.Fprintf(&sb, "%s!=%s", c.Key, c.Value.String())
		case OpIn:
			vals := make([]string, len(c.Set))
			for j, v := range c.Set {
				vals[j] = v.String()
			}
			fmt.Fprintf(&sb, "%s in (%s)", c.Key, strings.Join(vals, "|"))
		case OpPresent:
			fmt.Fprintf(&sb, "%s?", c.Key)
		case OpAbsent:
			fmt.Fprintf(&sb, "!%s", c.Key)
		case OpRegex:
			fmt.Fprintf(&sb, "%s~=%q", c.Key, c.source)
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
