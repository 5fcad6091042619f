package skills

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/industrial-opt/realtime-optimizer/internal/datacontext"
)

// Constraint modes. Soft constraints clamp a violating operative
// variable back to its bound; hard constraints mark the cycle result
// infeasible. Violations are data either way, never faults.
const (
	ModeSoft = "soft"
	ModeHard = "hard"
)

// Constraint checks one variable against its operating limits and
// records violations on the data context. When the spec declares an
// output, the constraint also writes a compliance score in [0, 1]:
// 1 inside the operating band, falling linearly to 0 at the physical
// limits.
type Constraint struct {
	base
	min     float64
	max     float64
	physMin float64
	physMax float64
	hard    bool
}

// NewConstraint validates the spec's constraint fields.
func NewConstraint(spec Spec) (*Constraint, error) {
	if len(spec.Inputs) != 1 {
		return nil, fmt.Errorf("constraint checks exactly one input, got %d", len(spec.Inputs))
	}
	if spec.Config.Min == nil && spec.Config.Max == nil {
		return nil, errors.New("constraint requires config.min or config.max")
	}
	mode := spec.Config.Mode
	if mode == "" {
		mode = ModeSoft
	}
	if mode != ModeSoft && mode != ModeHard {
		return nil, fmt.Errorf("constraint mode must be %q or %q, got %q", ModeSoft, ModeHard, mode)
	}
	if len(spec.Outputs) > 1 {
		return nil, fmt.Errorf("constraint writes at most one score output, got %d", len(spec.Outputs))
	}

	c := &Constraint{
		base:    base{id: spec.ID, kind: KindConstraint, inputs: spec.Inputs, outputs: spec.Outputs},
		min:     math.Inf(-1),
		max:     math.Inf(1),
		hard:    mode == ModeHard,
	}
	if spec.Config.Min != nil {
		c.min = *spec.Config.Min
	}
	if spec.Config.Max != nil {
		c.max = *spec.Config.Max
	}
	if c.min > c.max {
		return nil, fmt.Errorf("constraint bounds inverted: min %g > max %g", c.min, c.max)
	}
	c.physMin = c.min
	c.physMax = c.max
	if spec.Config.PhysMin != nil {
		c.physMin = *spec.Config.PhysMin
	}
	if spec.Config.PhysMax != nil {
		c.physMax = *spec.Config.PhysMax
	}
	return c, nil
}

// Execute never returns a violation as an error; only a missing input
// variable fails the skill.
func (s *Constraint) Execute(_ context.Context, _ *Env, dc *datacontext.Context) error {
	name := s.inputs[0]
	value, err := dc.Get(name)
	if err != nil {
		return err
	}

	if len(s.outputs) == 1 {
		if err := dc.Set(s.outputs[0], s.score(value)); err != nil {
			return err
		}
	}

	violated, bound := s.check(value)
	if !violated {
		return nil
	}

	spec, _ := dc.Spec(name)
	clamped := false
	if !s.hard && spec.Category == datacontext.Operative {
		if err := dc.Set(name, bound); err != nil {
			return err
		}
		clamped = true
	}
	dc.RecordViolation(datacontext.Violation{
		Constraint: s.id,
		Variable:   name,
		Value:      value,
		Bound:      bound,
		Hard:       s.hard,
		Clamped:    clamped,
	})
	return nil
}

func (s *Constraint) check(value float64) (violated bool, bound float64) {
	switch {
	case value < s.min:
		return true, s.min
	case value > s.max:
		return true, s.max
	}
	return false, 0
}

// score maps value to [0, 1]: 1 inside the operating band, linear
// falloff between the operating and physical limits, 0 beyond.
func (s *Constraint) score(value float64) float64 {
	if value >= s.min && value <= s.max {
		return 1
	}
	if value < s.min {
		if s.physMin >= s.min || value <= s.physMin {
			return 0
		}
		return (value - s.physMin) / (s.min - s.physMin)
	}
	if s.physMax <= s.max || value >= s.physMax {
		return 0
	}
	return (s.physMax - value) / (s.physMax - s.max)
}
