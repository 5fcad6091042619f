package skills

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/industrial-opt/realtime-optimizer/internal/datacontext"
)

// Function evaluates a pure mathematical expression over its declared
// inputs and writes one calculated output. The formula is compiled at
// build time, so a malformed expression or a reference to an
// undeclared variable fails strategy load.
type Function struct {
	base
	formula string
	program *vm.Program
}

// NewFunction compiles the spec's formula against the declared inputs.
func NewFunction(spec Spec) (*Function, error) {
	if spec.Config.Formula == "" {
		return nil, errors.New("function requires config.formula")
	}
	if len(spec.Outputs) != 1 {
		return nil, fmt.Errorf("function writes exactly one output, got %d", len(spec.Outputs))
	}

	// Typing every input as float64 makes unknown identifiers a
	// compile error rather than a mid-cycle surprise.
	env := make(map[string]any, len(spec.Inputs))
	for _, name := range spec.Inputs {
		env[name] = float64(0)
	}
	program, err := expr.Compile(spec.Config.Formula, expr.Env(env), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("compiling formula %q: %w", spec.Config.Formula, err)
	}

	return &Function{
		base:    base{id: spec.ID, kind: KindFunction, inputs: spec.Inputs, outputs: spec.Outputs},
		formula: spec.Config.Formula,
		program: program,
	}, nil
}

// Execute evaluates the formula with the context's current values.
func (s *Function) Execute(_ context.Context, _ *Env, dc *datacontext.Context) error {
	env := make(map[string]any, len(s.inputs))
	for _, name := range s.inputs {
		v, err := dc.Get(name)
		if err != nil {
			return err
		}
		env[name] = v
	}

	out, err := expr.Run(s.program, env)
	if err != nil {
		return fmt.Errorf("%w: formula %q: %v", ErrEvaluation, s.formula, err)
	}
	result, ok := out.(float64)
	if !ok {
		return fmt.Errorf("%w: formula %q produced %T, want float64", ErrEvaluation, s.formula, out)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return fmt.Errorf("%w: formula %q left the numeric domain (%v)", ErrEvaluation, s.formula, result)
	}

	return dc.Set(s.outputs[0], result)
}
