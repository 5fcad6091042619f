package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
	"github.com/industrial-opt/realtime-optimizer/internal/datasource"
	"github.com/industrial-opt/realtime-optimizer/internal/logging"
	"github.com/industrial-opt/realtime-optimizer/internal/orchestrator"
	"github.com/industrial-opt/realtime-optimizer/internal/versions"
	"github.com/industrial-opt/realtime-optimizer/pkg/solver"
)

const bucket = "artifacts"

const fixtureStrategy = `
name: furnace
variables:
  fuel_flow:
    category: informative
  heat_output:
    category: calculated
skills:
  estimate_heat:
    kind: function
    inputs: [fuel_flow]
    outputs: [heat_output]
    config:
      formula: fuel_flow * 11.2
tasks:
  - name: estimate
    skills: [estimate_heat]
outputs: [heat_output]
`

type fixture struct {
	scheduler *Scheduler
	gateway   *artifacts.MemoryGateway
	source    *datasource.Static
	lastRun   *versions.LastRunStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := artifacts.NewMemoryGateway()
	gw.Put(bucket, "strategies/furnace/2.0.0.yaml", []byte(fixtureStrategy))

	src := &staticVersions{desc: versions.Descriptor{artifacts.ClassStrategy: "2.0.0"}}
	cache := artifacts.NewCache(gw, bucket, artifacts.CacheOptions{})
	orch := orchestrator.New(logging.NewTestLogger(t), cache, src,
		solver.NewNumericSolver(time.Second, 100),
		orchestrator.Options{Budget: time.Minute, StrategyKey: "furnace"}, nil)

	lastRun := versions.NewLastRunStore(filepath.Join(t.TempDir(), "last_run.yaml"))
	source := &datasource.Static{}
	s := New(logging.NewTestLogger(t), orch, source, lastRun,
		Options{Interval: time.Hour, StatsEvery: 1})
	return &fixture{scheduler: s, gateway: gw, source: source, lastRun: lastRun}
}

type staticVersions struct {
	desc versions.Descriptor
}

func (s *staticVersions) Read(context.Context) (versions.Descriptor, error) {
	return s.desc, nil
}

func TestRunOnceAdvancesWatermark(t *testing.T) {
	f := newFixture(t)
	ts := time.Now().Truncate(time.Second)
	f.source.Sample = datasource.Sample{
		Timestamp: ts,
		Values:    map[string]float64{"fuel_flow": 10},
	}

	require.NoError(t, f.scheduler.runOnce(context.Background()))
	assert.Equal(t, ts, f.scheduler.watermark)
	assert.Equal(t, 1, f.scheduler.completed)

	persisted, err := f.lastRun.Read()
	require.NoError(t, err)
	assert.True(t, persisted.Equal(ts), "watermark must survive restarts")
}

func TestRunOnceSkipsStaleMeasurements(t *testing.T) {
	f := newFixture(t)
	ts := time.Now()
	f.source.Sample = datasource.Sample{Timestamp: ts, Values: map[string]float64{"fuel_flow": 10}}
	f.scheduler.watermark = ts // already processed

	require.NoError(t, f.scheduler.runOnce(context.Background()))
	assert.Equal(t, 0, f.scheduler.completed, "stale data must not trigger a cycle")
}

func TestRunOnceKeepsWatermarkOnFailure(t *testing.T) {
	f := newFixture(t)
	f.source.Sample = datasource.Sample{
		Timestamp: time.Now(),
		Values:    map[string]float64{}, // strategy's seed variable missing
	}

	err := f.scheduler.runOnce(context.Background())
	require.Error(t, err)
	assert.True(t, f.scheduler.watermark.IsZero())
	assert.Equal(t, 0, f.scheduler.completed)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.source.Sample = datasource.Sample{
		Timestamp: time.Now(),
		Values:    map[string]float64{"fuel_flow": 10},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.scheduler.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
