package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestComponentNamesChild(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	Component(zap.New(core), "fetcher").Info("escalating")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "fetcher", entries[0].LoggerName)
}

func TestComponentNilBase(t *testing.T) {
	t.Parallel()

	logger := Component(nil, "api")
	require.NotNil(t, logger)
	logger.Info("dropped")
}
