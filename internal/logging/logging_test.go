package logging

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerVerbosity(t *testing.T) {
	log, err := NewLogger(DEBUG, false)
	require.NoError(t, err)
	assert.True(t, log.V(DEBUG).Enabled())
	assert.False(t, log.V(TRACE).Enabled())
}

func TestContextRoundTrip(t *testing.T) {
	log := NewTestLogger(t)
	ctx := IntoContext(context.Background(), log)
	assert.Equal(t, log, FromContext(ctx))
	assert.Equal(t, logr.Discard(), FromContext(context.Background()))
}
