// Package strategy loads and validates the declarative strategy
// document: the variable catalog, the skill definitions, and the
// ordered task list. A strategy is itself a versioned artifact,
// resolved through the cache and reused across cycles until the
// deployed version changes.
package strategy

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
	"github.com/industrial-opt/realtime-optimizer/internal/datacontext"
	"github.com/industrial-opt/realtime-optimizer/internal/skills"
)

// VariableSpec is one catalog entry in the strategy document.
type VariableSpec struct {
	Category  string  `yaml:"category"`
	Units     string  `yaml:"units"`
	Threshold float64 `yaml:"threshold"`
}

// Task names an ordered group of skills. The declared order is the
// execution contract; there is no dependency graph.
type Task struct {
	Name   string   `yaml:"name"`
	Skills []string `yaml:"skills"`
}

// Document is the raw strategy file.
type Document struct {
	Name      string                  `yaml:"name"`
	Variables map[string]VariableSpec `yaml:"variables"`
	Skills    map[string]skills.Spec  `yaml:"skills"`
	Tasks     []Task                  `yaml:"tasks"`
	Outputs   []string                `yaml:"outputs"`
}

// Strategy is a validated document with every skill kind resolved to
// its concrete variant. Immutable once built; owned by its cache entry.
type Strategy struct {
	Doc    *Document
	Skills map[string]skills.Skill
}

// Decode parses, validates and builds a strategy document. Any
// configuration error (unknown skill kind, undefined variable,
// malformed formula) surfaces here, before the strategy can reach a
// cycle.
func Decode(data []byte) (*Strategy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing strategy document: %w: %v", artifacts.ErrCorrupt, err)
	}
	for id, spec := range doc.Skills {
		spec.ID = id
		doc.Skills[id] = spec
	}

	if err := validate(&doc); err != nil {
		return nil, err
	}
	built, err := skills.Build(doc.Skills)
	if err != nil {
		return nil, err
	}
	s := &Strategy{Doc: &doc, Skills: built}
	if err := validateTaskOrder(s); err != nil {
		return nil, err
	}
	return s, nil
}

// VarSpecs converts the catalog into the data context's form.
func (s *Strategy) VarSpecs() map[string]datacontext.VarSpec {
	out := make(map[string]datacontext.VarSpec, len(s.Doc.Variables))
	for name, v := range s.Doc.Variables {
		out[name] = datacontext.VarSpec{
			Category:  datacontext.Category(v.Category),
			Units:     v.Units,
			Threshold: v.Threshold,
		}
	}
	return out
}

// SeedVars returns the variables every cycle must receive from live
// measurements: informative inputs plus current operative setpoints.
func (s *Strategy) SeedVars() []string {
	var names []string
	for name, v := range s.Doc.Variables {
		if v.Category == string(datacontext.Informative) || v.Category == string(datacontext.Operative) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// OutputVars returns the declared result variables, defaulting to all
// operative and predicted variables when the document names none.
func (s *Strategy) OutputVars() []string {
	if len(s.Doc.Outputs) > 0 {
		return s.Doc.Outputs
	}
	var names []string
	for name, v := range s.Doc.Variables {
		if v.Category == string(datacontext.Operative) || v.Category == string(datacontext.Predicted) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// TaskSkills yields the resolved skills of task, in declared order.
func (s *Strategy) TaskSkills(task Task) ([]skills.Skill, error) {
	out := make([]skills.Skill, 0, len(task.Skills))
	for _, id := range task.Skills {
		skill, ok := s.Skills[id]
		if !ok {
			return nil, fmt.Errorf("task %q references undefined skill %q", task.Name, id)
		}
		out = append(out, skill)
	}
	return out, nil
}
