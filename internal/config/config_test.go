package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "optimizer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
storage:
  endpoint: objectstore.plant.local:9000
  bucket: artifacts
`))
	require.NoError(t, err)

	assert.Equal(t, "artifacts", cfg.Storage.Bucket)
	assert.Equal(t, DefaultCycleInterval, cfg.Cycle.Interval)
	assert.Equal(t, DefaultArtifactTTL, cfg.Cache.ArtifactTTL)
	assert.Equal(t, "process-optimization", cfg.Strategy.Key)
	assert.Equal(t, "process_data", cfg.Database.Table)
	assert.Equal(t, "0.0.0.0:5000", cfg.API.Addr())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
storage:
  endpoint: localhost:9000
  bucket: artifacts
cycle:
  interval: 60s
  budget: 30s
cache:
  strategy_ttl: 1h
strategy:
  key: reactor-optimization
verbosity: 2
`))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Cycle.Interval)
	assert.Equal(t, 30*time.Second, cfg.Cycle.Budget)
	assert.Equal(t, time.Hour, cfg.Cache.StrategyTTL)
	assert.Equal(t, "reactor-optimization", cfg.Strategy.Key)
	assert.Equal(t, 2, cfg.Verbosity)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "non-positive interval", body: "cycle:\n  interval: 0s\n"},
		{name: "non-positive budget", body: "cycle:\n  budget: -1s\n"},
		{name: "port out of range", body: "api:\n  port: 70000\n"},
		{name: "empty pointer file", body: "versions:\n  pointer_file: \"\"\n"},
		{name: "empty strategy key", body: "strategy:\n  key: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestConnString(t *testing.T) {
	d := DatabaseConfig{
		Host: "db.plant.local", Port: 5432, User: "rto",
		Password: "secret", Name: "process", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db.plant.local port=5432 user=rto password=secret dbname=process sslmode=disable",
		d.ConnString())
}
