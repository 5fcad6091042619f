// Package datacontext holds the per-cycle variable scratch space. A
// Context is created fresh for every cycle, seeded with live
// measurements, mutated by skills in task order, and discarded after
// result extraction. It is never shared across concurrent cycles and
// is therefore not synchronized.
package datacontext

import (
	"errors"
	"fmt"
	"sort"
)

// Category partitions variables by who may write them.
type Category string

const (
	// Informative variables are read-only process inputs, written once
	// when the context is seeded.
	Informative Category = "informative"

	// Operative variables are control setpoints, rewritten by the
	// optimizer and clamped by soft constraints.
	Operative Category = "operative"

	// Calculated variables are derived by function skills.
	Calculated Category = "calculated"

	// Predicted variables are model outputs.
	Predicted Category = "predicted"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case Informative, Operative, Calculated, Predicted:
		return true
	}
	return false
}

// VarSpec describes one variable in the strategy's catalog.
type VarSpec struct {
	Category Category
	Units    string
	// Threshold is the optimizer's move limit: bounds for an operative
	// variable are its seeded value ± Threshold.
	Threshold float64
}

// ErrUndefinedVariable is returned when reading a variable that no
// prior skill produced and that was not seeded.
var ErrUndefinedVariable = errors.New("undefined variable")

// Violation records one constraint violation. Violations are data, not
// faults: they flow into the cycle result, never abort execution.
type Violation struct {
	Constraint string  `json:"constraint"`
	Variable   string  `json:"variable"`
	Value      float64 `json:"value"`
	Bound      float64 `json:"bound"`
	Hard       bool    `json:"hard"`
	Clamped    bool    `json:"clamped"`
}

// Context is the per-cycle variable store.
type Context struct {
	specs      map[string]VarSpec
	values     map[string]float64
	initial    map[string]float64
	seeded     bool
	violations []Violation
}

// New creates an empty context over the strategy's variable catalog.
func New(specs map[string]VarSpec) *Context {
	copied := make(map[string]VarSpec, len(specs))
	for name, spec := range specs {
		copied[name] = spec
	}
	return &Context{
		specs:   copied,
		values:  make(map[string]float64, len(specs)),
		initial: make(map[string]float64),
	}
}

// Seed writes the cycle's live measurements. Informative and operative
// variables take their initial values here; the seeded value is also
// remembered for recommendation deltas and optimizer bounds. Seeding
// twice is a programming error.
func (c *Context) Seed(measurements map[string]float64) error {
	if c.seeded {
		return errors.New("context already seeded")
	}
	for name, value := range measurements {
		if _, ok := c.specs[name]; !ok {
			continue // measurements may carry variables the strategy ignores
		}
		c.values[name] = value
		c.initial[name] = value
	}
	c.seeded = true
	return nil
}

// Get returns the current value of name, or ErrUndefinedVariable when
// no producer has written it.
func (c *Context) Get(name string) (float64, error) {
	v, ok := c.values[name]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, ErrUndefinedVariable)
	}
	return v, nil
}

// Set writes name's current value. Informative variables are write-once
// at seed time; the static load-time check makes this unreachable from
// a validated strategy, but the guard stays for direct callers.
func (c *Context) Set(name string, value float64) error {
	spec, ok := c.specs[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUndefinedVariable)
	}
	if spec.Category == Informative && c.seeded {
		return fmt.Errorf("informative variable %q is read-only after seeding", name)
	}
	c.values[name] = value
	return nil
}

// Initial returns the seeded value of name, when it was seeded.
func (c *Context) Initial(name string) (float64, bool) {
	v, ok := c.initial[name]
	return v, ok
}

// Spec returns the catalog entry for name.
func (c *Context) Spec(name string) (VarSpec, bool) {
	s, ok := c.specs[name]
	return s, ok
}

// Has reports whether name is in the catalog.
func (c *Context) Has(name string) bool {
	_, ok := c.specs[name]
	return ok
}

// Of returns the catalog names in the given category, sorted.
func (c *Context) Of(category Category) []string {
	var names []string
	for name, spec := range c.specs {
		if spec.Category == category {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RecordViolation appends a constraint violation to the cycle record.
func (c *Context) RecordViolation(v Violation) {
	c.violations = append(c.violations, v)
}

// Violations returns the violations recorded so far, in order.
func (c *Context) Violations() []Violation {
	return append([]Violation(nil), c.violations...)
}

// Feasible reports whether every recorded violation was resolved by
// clamping. A hard violation, or a soft one on a variable that cannot
// be clamped, leaves the cycle infeasible.
func (c *Context) Feasible() bool {
	for _, v := range c.violations {
		if !v.Clamped {
			return false
		}
	}
	return true
}

// Snapshot returns an independent copy of every defined value, for
// result extraction.
func (c *Context) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(c.values))
	for name, value := range c.values {
		out[name] = value
	}
	return out
}
