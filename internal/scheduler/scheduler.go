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

// Package scheduler drives continuous optimization cycles on a fixed
// interval. It feeds each cycle the newest measurement row, persists
// the watermark of the last successful cycle, and backs off
// exponentially while cycles keep failing.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/industrial-opt/realtime-optimizer/internal/datasource"
	"github.com/industrial-opt/realtime-optimizer/internal/orchestrator"
	"github.com/industrial-opt/realtime-optimizer/internal/versions"
)

// Options configures the continuous loop.
type Options struct {
	// Interval between cycle starts while the system is healthy.
	Interval time.Duration

	// StatsEvery logs cache statistics after every N completed cycles.
	// Zero disables the report.
	StatsEvery int
}

// Scheduler owns the continuous cycle loop. On-demand cycles triggered
// through the API run concurrently against the same orchestrator.
type Scheduler struct {
	log     logr.Logger
	orch    *orchestrator.Orchestrator
	source  datasource.Source
	lastRun *versions.LastRunStore
	opts    Options

	watermark time.Time
	completed int
}

// New wires the continuous loop. lastRun may be nil when the watermark
// should not survive restarts.
func New(log logr.Logger, orch *orchestrator.Orchestrator, source datasource.Source, lastRun *versions.LastRunStore, opts Options) *Scheduler {
	return &Scheduler{
		log:     log,
		orch:    orch,
		source:  source,
		lastRun: lastRun,
		opts:    opts,
	}
}

// Run blocks until ctx is cancelled, starting one cycle immediately
// and then one per interval. A failing cycle shortens the wait to the
// current backoff; a successful cycle resets it.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.lastRun != nil {
		w, err := s.lastRun.Read()
		if err != nil {
			return err
		}
		s.watermark = w
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.Interval / 8
	bo.MaxInterval = s.opts.Interval
	bo.MaxElapsedTime = 0
	bo.Reset()

	s.log.Info("continuous optimization started",
		"interval", s.opts.Interval, "watermark", s.watermark)

	for {
		wait := s.opts.Interval
		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				s.log.Info("continuous optimization stopped")
				return nil
			}
			wait = bo.NextBackOff()
			s.log.Error(err, "cycle failed, backing off", "retryIn", wait)
		} else {
			bo.Reset()
		}

		select {
		case <-ctx.Done():
			s.log.Info("continuous optimization stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) error {
	vars, err := s.orch.SeedVars(ctx)
	if err != nil {
		return err
	}

	sample, err := s.source.Latest(ctx, vars, s.watermark)
	if errors.Is(err, datasource.ErrNoNewData) {
		s.log.V(1).Info("no new measurements, skipping cycle", "watermark", s.watermark)
		return nil
	}
	if err != nil {
		return err
	}

	result, err := s.orch.RunCycle(ctx, orchestrator.Input{
		Timestamp: sample.Timestamp,
		Values:    sample.Values,
	})
	if err != nil {
		return err
	}

	s.log.V(1).Info("scheduled cycle complete",
		"cycle", result.CycleID,
		"feasible", result.Feasible,
		"measurementTime", sample.Timestamp)

	s.watermark = sample.Timestamp
	if s.lastRun != nil {
		if err := s.lastRun.Write(s.watermark); err != nil {
			s.log.Error(err, "persisting last-run watermark")
		}
	}

	s.completed++
	if s.opts.StatsEvery > 0 && s.completed%s.opts.StatsEvery == 0 {
		stats := s.orch.Cache().Stats()
		s.log.Info("artifact cache statistics",
			"hits", stats.Hits,
			"misses", stats.Misses,
			"evictions", stats.Evictions,
			"bytesResident", stats.BytesResident,
			"entries", stats.EntryCount)
	}

	return nil
}
