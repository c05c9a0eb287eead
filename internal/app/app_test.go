package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdmxkit/catalog-builder/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		SDMX: config.SDMXConfig{
			BaseURL:        "https://sdmx.example.org/rest",
			UserAgent:      "test-agent",
			TimeoutSeconds: 30,
		},
		Quota: config.QuotaConfig{Limit: 60, WindowMinutes: 60},
		Storage: config.StorageConfig{
			Provider:         "local",
			CatalogPath:      filepath.Join(dir, "catalog.json"),
			CheckpointPath:   filepath.Join(dir, "checkpoint.json"),
			FailureLogPath:   filepath.Join(dir, "failed_items.jsonl"),
			ExecutionLogPath: filepath.Join(dir, "run.log"),
		},
	}
}

func TestNewWithLocalProviders(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Logger)
	require.NotNil(t, a.Fetcher)
	require.NotNil(t, a.Catalogs)
	require.NotNil(t, a.Checkpoints)
	require.NotNil(t, a.Failures)
	require.NotNil(t, a.Notifier)
	require.Nil(t, a.History, "history is off by default")
	require.NotNil(t, a.Selector())
}

func TestNewRejectsUnknownStorageProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Provider = "ftp"

	_, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown storage provider")
}
