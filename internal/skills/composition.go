package skills

import (
	"context"
	"errors"
	"fmt"

	"github.com/industrial-opt/realtime-optimizer/internal/datacontext"
)

// Composition executes a named sub-sequence of skills as a single
// unit. It is transparent with respect to the data context: member
// skills mutate it under the same rules as top-level tasks.
type Composition struct {
	base
	sequenceIDs []string
	sequence    []Skill
}

// NewComposition validates the spec's sequence field.
func NewComposition(spec Spec) (*Composition, error) {
	if len(spec.Config.Sequence) == 0 {
		return nil, errors.New("composition requires config.sequence")
	}
	return &Composition{
		base:        base{id: spec.ID, kind: KindComposition, inputs: spec.Inputs, outputs: spec.Outputs},
		sequenceIDs: spec.Config.Sequence,
	}, nil
}

func (s *Composition) resolve(built map[string]Skill) error {
	s.sequence = make([]Skill, 0, len(s.sequenceIDs))
	for _, id := range s.sequenceIDs {
		member, ok := built[id]
		if !ok {
			return fmt.Errorf("sequence member %q not defined", id)
		}
		if id == s.id {
			return fmt.Errorf("composition %q cannot contain itself", id)
		}
		s.sequence = append(s.sequence, member)
	}
	return nil
}

// Members returns the resolved sequence, in execution order.
func (s *Composition) Members() []Skill {
	return s.sequence
}

// Execute runs each member in order, stopping at the first failure.
func (s *Composition) Execute(ctx context.Context, env *Env, dc *datacontext.Context) error {
	for _, member := range s.sequence {
		if err := member.Execute(ctx, env, dc); err != nil {
			return fmt.Errorf("composition member %q: %w", member.ID(), err)
		}
	}
	return nil
}
