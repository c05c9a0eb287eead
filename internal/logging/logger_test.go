package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

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

func TestNewWithFile_WritesFieldsAsJSONSuffix(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.log")
	logger, closeFn, err := NewWithFile(false, path)
	require.NoError(t, err)

	logger.Warn("quota exhausted", zap.String("item", "DSD_SHA"))
	closeFn()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "quota exhausted")
	require.Contains(t, string(data), `{"item": "DSD_SHA"}`)
}

func TestNewWithFile_EmptyPathFallsBackToConsole(t *testing.T) {
	t.Parallel()

	logger, closeFn, err := NewWithFile(true, "")
	require.NoError(t, err)
	require.NotNil(t, logger)
	closeFn()
}
