package strategy

import (
	"fmt"
	"sort"

	"github.com/industrial-opt/realtime-optimizer/internal/datacontext"
	"github.com/industrial-opt/realtime-optimizer/internal/skills"
)

// validate performs the structural checks that need only the raw
// document: catalog categories, variable references, task references.
func validate(doc *Document) error {
	if len(doc.Variables) == 0 {
		return fmt.Errorf("strategy declares no variables")
	}
	if len(doc.Tasks) == 0 {
		return fmt.Errorf("strategy declares no tasks")
	}
	for name, v := range doc.Variables {
		if !datacontext.Category(v.Category).Valid() {
			return fmt.Errorf("variable %q: unknown category %q", name, v.Category)
		}
		if v.Threshold < 0 {
			return fmt.Errorf("variable %q: negative threshold %v", name, v.Threshold)
		}
	}
	for id, spec := range doc.Skills {
		for _, in := range spec.Inputs {
			if _, ok := doc.Variables[in]; !ok {
				return fmt.Errorf("skill %q: input %q: %w", id, in, datacontext.ErrUndefinedVariable)
			}
		}
		for _, out := range spec.Outputs {
			if _, ok := doc.Variables[out]; !ok {
				return fmt.Errorf("skill %q: output %q: %w", id, out, datacontext.ErrUndefinedVariable)
			}
		}
		if spec.Kind == skills.KindOptimizer {
			for _, in := range spec.Inputs {
				v := doc.Variables[in]
				if v.Category != string(datacontext.Operative) {
					return fmt.Errorf("skill %q: decision variable %q is %s, want operative", id, in, v.Category)
				}
				if v.Threshold <= 0 {
					return fmt.Errorf("skill %q: decision variable %q has no movement threshold", id, in)
				}
			}
		}
	}
	for _, task := range doc.Tasks {
		if len(task.Skills) == 0 {
			return fmt.Errorf("task %q lists no skills", task.Name)
		}
		for _, id := range task.Skills {
			if _, ok := doc.Skills[id]; !ok {
				return fmt.Errorf("task %q references undefined skill %q", task.Name, id)
			}
		}
	}
	for _, out := range doc.Outputs {
		if _, ok := doc.Variables[out]; !ok {
			return fmt.Errorf("output %q: %w", out, datacontext.ErrUndefinedVariable)
		}
	}
	return nil
}

// validateTaskOrder replays the declared task order against the write
// discipline: a skill may only read variables that are seeded at cycle
// start or produced by an earlier skill. Compositions and optimizer
// cost chains are expanded so nested reads are checked at the position
// where they actually run.
func validateTaskOrder(s *Strategy) error {
	available := map[string]bool{}
	for name, v := range s.Doc.Variables {
		if v.Category == string(datacontext.Informative) || v.Category == string(datacontext.Operative) {
			available[name] = true
		}
	}
	for _, task := range s.Doc.Tasks {
		for _, id := range task.Skills {
			if err := checkSkill(s.Skills[id], available); err != nil {
				return fmt.Errorf("task %q: %w", task.Name, err)
			}
		}
	}
	return nil
}

func checkSkill(skill skills.Skill, available map[string]bool) error {
	switch v := skill.(type) {
	case *skills.Composition:
		for _, member := range v.Members() {
			if err := checkSkill(member, available); err != nil {
				return fmt.Errorf("composition %q: %w", skill.ID(), err)
			}
		}
		return nil
	case *skills.Optimizer:
		// The cost skill runs inside the objective, so its reads must
		// be satisfied at the optimizer's position.
		if err := checkSkill(v.CostSkill(), available); err != nil {
			return fmt.Errorf("optimizer %q: %w", skill.ID(), err)
		}
	}
	var missing []string
	for _, in := range skill.In() {
		if !available[in] {
			missing = append(missing, in)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("skill %q reads %v before any producer: %w",
			skill.ID(), missing, datacontext.ErrUndefinedVariable)
	}
	for _, out := range skill.Out() {
		available[out] = true
	}
	return nil
}
