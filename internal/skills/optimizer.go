package skills

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/industrial-opt/realtime-optimizer/internal/datacontext"
	"github.com/industrial-opt/realtime-optimizer/pkg/solver"
)

// Optimizer minimizes a cost variable by moving its declared inputs
// (operative variables) within their move limits. The cost is produced
// by another skill, usually a composition chaining functions and
// inference, re-executed on every objective evaluation.
type Optimizer struct {
	base
	costSkillID  string
	costVariable string
	costSkill    Skill
}

// NewOptimizer validates the spec's optimizer fields.
func NewOptimizer(spec Spec) (*Optimizer, error) {
	if spec.Config.CostSkill == "" {
		return nil, errors.New("optimizer requires config.cost_skill")
	}
	if spec.Config.CostVariable == "" {
		return nil, errors.New("optimizer requires config.cost_variable")
	}
	if len(spec.Inputs) == 0 {
		return nil, errors.New("optimizer requires at least one decision variable")
	}
	return &Optimizer{
		base:         base{id: spec.ID, kind: KindOptimizer, inputs: spec.Inputs, outputs: spec.Inputs},
		costSkillID:  spec.Config.CostSkill,
		costVariable: spec.Config.CostVariable,
	}, nil
}

// CostSkill returns the resolved objective producer.
func (s *Optimizer) CostSkill() Skill { return s.costSkill }

func (s *Optimizer) resolve(built map[string]Skill) error {
	costSkill, ok := built[s.costSkillID]
	if !ok {
		return fmt.Errorf("cost skill %q not defined", s.costSkillID)
	}
	s.costSkill = costSkill
	return nil
}

// Execute solves for the decision variables and writes the optimized
// setpoints back into the context.
func (s *Optimizer) Execute(ctx context.Context, env *Env, dc *datacontext.Context) error {
	initial := make([]float64, len(s.inputs))
	bounds := make([]solver.Bound, len(s.inputs))
	for i, name := range s.inputs {
		current, err := dc.Get(name)
		if err != nil {
			return err
		}
		center := current
		if seeded, ok := dc.Initial(name); ok {
			center = seeded // move limits anchor on the measured value
		}
		spec, _ := dc.Spec(name)
		initial[i] = current
		bounds[i] = solver.Bound{Min: center - spec.Threshold, Max: center + spec.Threshold}
	}

	problem := &solver.Problem{
		Initial: initial,
		Bounds:  bounds,
	}
	problem.Objective = func(x []float64) float64 {
		for i, name := range s.inputs {
			if err := dc.Set(name, x[i]); err != nil {
				if problem.Err == nil {
					problem.Err = err
				}
				return math.Inf(1)
			}
		}
		if err := s.costSkill.Execute(ctx, env, dc); err != nil {
			if problem.Err == nil {
				problem.Err = fmt.Errorf("evaluating cost skill %q: %w", s.costSkillID, err)
			}
			return math.Inf(1)
		}
		cost, err := dc.Get(s.costVariable)
		if err != nil {
			if problem.Err == nil {
				problem.Err = err
			}
			return math.Inf(1)
		}
		return cost
	}

	solution, err := env.Solver.Solve(ctx, problem)
	if err != nil {
		return fmt.Errorf("optimizing %v: %w", s.inputs, err)
	}

	for i, name := range s.inputs {
		if err := dc.Set(name, solution.X[i]); err != nil {
			return err
		}
	}
	return nil
}
