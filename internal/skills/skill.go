/*
Copyright 2025 The realtime-optimizer Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package skills implements the strategy's computation units. A skill
// kind written in the strategy document resolves to a concrete variant
// once at load time; execution dispatches over the closed set, so an
// unknown kind can never surface mid-cycle.
package skills

import (
	"context"
	"errors"
	"fmt"

	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
	"github.com/industrial-opt/realtime-optimizer/internal/datacontext"
	"github.com/industrial-opt/realtime-optimizer/internal/versions"
	"github.com/industrial-opt/realtime-optimizer/pkg/solver"
)

// Kind names a skill variant in the strategy document.
type Kind string

const (
	KindModelInference Kind = "model_inference"
	KindFunction       Kind = "function"
	KindConstraint     Kind = "constraint"
	KindOptimizer      Kind = "optimizer"
	KindComposition    Kind = "composition"
)

// Error taxonomy for skill configuration and execution.
var (
	// ErrUnknownKind fails strategy load; it is never seen mid-cycle.
	ErrUnknownKind = errors.New("unknown skill kind")

	// ErrModelUnavailable means the cache could not resolve the model
	// or scaler this cycle.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrShapeMismatch means the declared inputs disagree with the
	// model's expected input width.
	ErrShapeMismatch = errors.New("input shape mismatch")

	// ErrEvaluation means a function hit a numeric domain violation.
	ErrEvaluation = errors.New("expression evaluation failed")
)

// Env carries the process-wide collaborators a skill may need during
// execution. The cycle's resolved versions pin every artifact lookup.
type Env struct {
	Artifacts *artifacts.Cache
	Versions  versions.Descriptor
	Solver    solver.Solver
}

// Skill is one computation unit operating on the data context.
type Skill interface {
	ID() string
	Kind() Kind
	In() []string
	Out() []string
	Execute(ctx context.Context, env *Env, dc *datacontext.Context) error
}

// Spec is the declarative form of a skill in the strategy document.
type Spec struct {
	ID      string   `yaml:"-"`
	Kind    Kind     `yaml:"kind"`
	Inputs  []string `yaml:"inputs"`
	Outputs []string `yaml:"outputs"`
	Config  Config   `yaml:"config"`
}

// Config is the union of per-kind configuration fields. Each variant
// reads its own subset; Build rejects specs missing required fields.
type Config struct {
	// model_inference
	Model    string `yaml:"model"`
	Scaler   string `yaml:"scaler"`
	Metadata string `yaml:"metadata"`

	// function
	Formula string `yaml:"formula"`

	// constraint
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	PhysMin *float64 `yaml:"phys_min"`
	PhysMax *float64 `yaml:"phys_max"`
	Mode    string   `yaml:"mode"`

	// optimizer
	CostSkill    string `yaml:"cost_skill"`
	CostVariable string `yaml:"cost_variable"`

	// composition
	Sequence []string `yaml:"sequence"`
}

// Build resolves every spec to its concrete variant. Reference fields
// (composition sequences, optimizer cost skills) are linked in a second
// pass so declaration order never matters. All errors here are
// configuration errors: they fail strategy load before any cycle runs.
func Build(specs map[string]Spec) (map[string]Skill, error) {
	built := make(map[string]Skill, len(specs))
	for id, spec := range specs {
		spec.ID = id
		skill, err := buildOne(spec)
		if err != nil {
			return nil, fmt.Errorf("skill %q: %w", id, err)
		}
		built[id] = skill
	}

	for id, skill := range built {
		switch s := skill.(type) {
		case *Composition:
			if err := s.resolve(built); err != nil {
				return nil, fmt.Errorf("skill %q: %w", id, err)
			}
		case *Optimizer:
			if err := s.resolve(built); err != nil {
				return nil, fmt.Errorf("skill %q: %w", id, err)
			}
		}
	}

	for id, skill := range built {
		if c, ok := skill.(*Composition); ok {
			if err := checkCompositionCycle(c, map[string]bool{}); err != nil {
				return nil, fmt.Errorf("skill %q: %w", id, err)
			}
		}
	}
	return built, nil
}

// checkCompositionCycle rejects compositions that reach themselves
// through other compositions, which would recurse forever at runtime.
func checkCompositionCycle(c *Composition, visiting map[string]bool) error {
	if visiting[c.ID()] {
		return fmt.Errorf("composition cycle through %q", c.ID())
	}
	visiting[c.ID()] = true
	for _, member := range c.Members() {
		if inner, ok := member.(*Composition); ok {
			if err := checkCompositionCycle(inner, visiting); err != nil {
				return err
			}
		}
	}
	delete(visiting, c.ID())
	return nil
}

func buildOne(spec Spec) (Skill, error) {
	switch spec.Kind {
	case KindModelInference:
		return NewModelInference(spec)
	case KindFunction:
		return NewFunction(spec)
	case KindConstraint:
		return NewConstraint(spec)
	case KindOptimizer:
		return NewOptimizer(spec)
	case KindComposition:
		return NewComposition(spec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}

type base struct {
	id      string
	kind    Kind
	inputs  []string
	outputs []string
}

func (b base) ID() string    { return b.id }
func (b base) Kind() Kind    { return b.kind }
func (b base) In() []string  { return b.inputs }
func (b base) Out() []string { return b.outputs }
