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

// Package orchestrator runs optimization cycles. A cycle is one pass
// of the active strategy's task list against a fresh data context,
// driven through a fixed state sequence with no internal retry; the
// scheduler or an API request decides whether a failed cycle is tried
// again.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
	"github.com/industrial-opt/realtime-optimizer/internal/datacontext"
	"github.com/industrial-opt/realtime-optimizer/internal/logging"
	"github.com/industrial-opt/realtime-optimizer/internal/skills"
	"github.com/industrial-opt/realtime-optimizer/internal/strategy"
	"github.com/industrial-opt/realtime-optimizer/internal/versions"
	"github.com/industrial-opt/realtime-optimizer/pkg/solver"
)

// State names one phase of the cycle state machine.
type State string

const (
	StateIdle             State = "Idle"
	StateLoadingStrategy  State = "LoadingStrategy"
	StateSeedingContext   State = "SeedingContext"
	StateRunningTasks     State = "RunningTasks"
	StateExtractingResult State = "ExtractingResult"
)

// ErrMissingVariable means the seed payload lacks a variable the
// strategy requires at cycle start.
var ErrMissingVariable = errors.New("required seed variable missing")

// CycleError wraps any fault that aborted a cycle, tagged with the
// state it happened in. The cache and loaded strategy stay valid for
// the next cycle.
type CycleError struct {
	CycleID string
	State   State
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %s failed in %s: %v", e.CycleID, e.State, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// Input is one cycle's seed payload: the measurement timestamp and the
// informative/operative values it carries.
type Input struct {
	Timestamp time.Time
	Values    map[string]float64
}

// Recommendation reports one operative variable's move: the measured
// value the cycle started from, the optimized setpoint, and the delta.
type Recommendation struct {
	Variable    string  `json:"variable"`
	Current     float64 `json:"current"`
	Recommended float64 `json:"recommended"`
	Delta       float64 `json:"delta"`
}

// TaskTiming records one task's wall-clock cost.
type TaskTiming struct {
	Task     string        `json:"task"`
	Duration time.Duration `json:"duration"`
}

// Result is a completed cycle's payload.
type Result struct {
	CycleID         string                  `json:"cycle_id"`
	StrategyVersion string                  `json:"strategy_version"`
	MeasurementTime time.Time               `json:"measurement_time"`
	Outputs         map[string]float64      `json:"outputs"`
	Feasible        bool                    `json:"feasible"`
	Violations      []datacontext.Violation `json:"violations,omitempty"`
	Recommendations []Recommendation        `json:"recommendations,omitempty"`
	TaskTimings     []TaskTiming            `json:"task_timings,omitempty"`
	Duration        time.Duration           `json:"duration"`
}

// Options configures an Orchestrator.
type Options struct {
	// Budget bounds one cycle's wall clock. Zero disables the bound.
	Budget time.Duration

	// StrategyKey is the logical cache key of the strategy document.
	StrategyKey string
}

// Orchestrator owns the cycle state machine. Safe for concurrent use:
// scheduled and on-demand cycles share the cache and loader but each
// call builds its own data context.
type Orchestrator struct {
	log      logr.Logger
	cache    *artifacts.Cache
	loader   *strategy.Loader
	versions versions.Source
	solver   solver.Solver
	budget   time.Duration
	metrics  *Metrics

	invalidation invalidationState
}

// New wires an orchestrator. The metrics may be nil when no registry
// is attached (tests).
func New(log logr.Logger, cache *artifacts.Cache, src versions.Source, slv solver.Solver, opts Options, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		log:      log,
		cache:    cache,
		loader:   strategy.NewLoader(cache, opts.StrategyKey),
		versions: src,
		solver:   slv,
		budget:   opts.Budget,
		metrics:  metrics,
	}
}

// Cache exposes the shared artifact cache for the service surface
// (stats and clear endpoints).
func (o *Orchestrator) Cache() *artifacts.Cache { return o.cache }

// SeedVars resolves the active strategy and returns the variables a
// cycle's input payload must carry. Cheap after the first call: the
// strategy comes from the cache.
func (o *Orchestrator) SeedVars(ctx context.Context) ([]string, error) {
	desc, err := o.versions.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading version descriptor: %w", err)
	}
	strat, err := o.loader.Load(ctx, desc.For(artifacts.ClassStrategy))
	if err != nil {
		return nil, err
	}
	return strat.SeedVars(), nil
}

// RunCycle executes one full cycle over input. On failure the returned
// error is always a *CycleError; the partially built result is
// discarded.
func (o *Orchestrator) RunCycle(ctx context.Context, input Input) (*Result, error) {
	start := time.Now()
	cycleID := uuid.NewString()
	log := o.log.WithValues("cycle", cycleID)
	ctx = logging.IntoContext(ctx, log)

	if o.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.budget)
		defer cancel()
	}

	result, err := o.run(ctx, log, cycleID, input)
	elapsed := time.Since(start)
	if err != nil {
		var cerr *CycleError
		errors.As(err, &cerr)
		log.Error(err, "cycle failed", "state", cerr.State, "elapsed", elapsed)
		o.metrics.observeCycle(elapsed, false)
		return nil, err
	}

	result.Duration = elapsed
	log.Info("cycle complete",
		"strategyVersion", result.StrategyVersion,
		"feasible", result.Feasible,
		"violations", len(result.Violations),
		"elapsed", elapsed)
	o.metrics.observeCycle(elapsed, true)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, log logr.Logger, cycleID string, input Input) (*Result, error) {
	fail := func(state State, err error) (*Result, error) {
		return nil, &CycleError{CycleID: cycleID, State: state, Err: err}
	}

	// LoadingStrategy: pin this cycle's artifact versions, invalidate
	// whatever the pointer moved, resolve the strategy.
	desc, err := o.versions.Read(ctx)
	if err != nil {
		return fail(StateLoadingStrategy, fmt.Errorf("reading version descriptor: %w", err))
	}
	o.applyVersionChanges(log, desc)

	strat, err := o.loader.Load(ctx, desc.For(artifacts.ClassStrategy))
	if err != nil {
		return fail(StateLoadingStrategy, err)
	}
	if err := o.loader.CheckShapes(ctx, log, strat, desc); err != nil {
		return fail(StateLoadingStrategy, err)
	}

	// SeedingContext: fresh context, never shared across cycles.
	dc := datacontext.New(strat.VarSpecs())
	for _, name := range strat.SeedVars() {
		if _, ok := input.Values[name]; !ok {
			return fail(StateSeedingContext, fmt.Errorf("%w: %q", ErrMissingVariable, name))
		}
	}
	if err := dc.Seed(input.Values); err != nil {
		return fail(StateSeedingContext, err)
	}

	// RunningTasks: declared order is the contract. The first fatal
	// skill error aborts the cycle; constraint violations are data.
	env := &skills.Env{Artifacts: o.cache, Versions: desc, Solver: o.solver}
	timings := make([]TaskTiming, 0, len(strat.Doc.Tasks))
	for _, task := range strat.Doc.Tasks {
		taskStart := time.Now()
		taskSkills, err := strat.TaskSkills(task)
		if err != nil {
			return fail(StateRunningTasks, err)
		}
		for _, skill := range taskSkills {
			if err := ctx.Err(); err != nil {
				return fail(StateRunningTasks, fmt.Errorf("cycle budget exhausted: %w", err))
			}
			if err := skill.Execute(ctx, env, dc); err != nil {
				return fail(StateRunningTasks, fmt.Errorf("task %q skill %q: %w", task.Name, skill.ID(), err))
			}
		}
		timings = append(timings, TaskTiming{Task: task.Name, Duration: time.Since(taskStart)})
		log.V(1).Info("task complete", "task", task.Name, "elapsed", timings[len(timings)-1].Duration)
	}

	// ExtractingResult.
	outputs := make(map[string]float64, len(strat.OutputVars()))
	for _, name := range strat.OutputVars() {
		v, err := dc.Get(name)
		if err != nil {
			return fail(StateExtractingResult, fmt.Errorf("output %q: %w", name, err))
		}
		outputs[name] = v
	}

	return &Result{
		CycleID:         cycleID,
		StrategyVersion: desc.For(artifacts.ClassStrategy),
		MeasurementTime: input.Timestamp,
		Outputs:         outputs,
		Feasible:        dc.Feasible(),
		Violations:      dc.Violations(),
		Recommendations: recommendations(dc),
		TaskTimings:     timings,
	}, nil
}

// recommendations compares every operative variable's final value to
// its seeded measurement.
func recommendations(dc *datacontext.Context) []Recommendation {
	var recs []Recommendation
	for _, name := range dc.Of(datacontext.Operative) {
		initial, ok := dc.Initial(name)
		if !ok {
			continue
		}
		current, err := dc.Get(name)
		if err != nil {
			continue
		}
		recs = append(recs, Recommendation{
			Variable:    name,
			Current:     initial,
			Recommended: current,
			Delta:       current - initial,
		})
	}
	return recs
}
