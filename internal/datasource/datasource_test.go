package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProjectsRequestedVariables(t *testing.T) {
	now := time.Now()
	src := &Static{Sample: Sample{
		Timestamp: now,
		Values:    map[string]float64{"feed_rate": 120.5, "oxygen_flow": 900, "unrelated": 1},
	}}

	sample, err := src.Latest(context.Background(), []string{"feed_rate", "oxygen_flow", "absent"}, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, now, sample.Timestamp)
	assert.Equal(t, map[string]float64{"feed_rate": 120.5, "oxygen_flow": 900}, sample.Values)
}

func TestStaticHonorsWatermark(t *testing.T) {
	now := time.Now()
	src := &Static{Sample: Sample{Timestamp: now, Values: map[string]float64{"feed_rate": 1}}}

	_, err := src.Latest(context.Background(), []string{"feed_rate"}, now)
	assert.True(t, errors.Is(err, ErrNoNewData), "got %v", err)
}

func TestPostgresRejectsUnsafeColumnNames(t *testing.T) {
	p := &Postgres{table: "process_data"}
	_, err := p.Latest(context.Background(), []string{`feed_rate"; DROP TABLE x; --`}, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid measurement column")
}
