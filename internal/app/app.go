// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/sdmxkit/catalog-builder/internal/checkpoint"
	"github.com/sdmxkit/catalog-builder/internal/config"
	"github.com/sdmxkit/catalog-builder/internal/extractor"
	"github.com/sdmxkit/catalog-builder/internal/failure"
	"github.com/sdmxkit/catalog-builder/internal/fetch"
	"github.com/sdmxkit/catalog-builder/internal/logging"
	"github.com/sdmxkit/catalog-builder/internal/metrics"
	"github.com/sdmxkit/catalog-builder/internal/notify"
	notifypubsub "github.com/sdmxkit/catalog-builder/internal/notify/pubsub"
	"github.com/sdmxkit/catalog-builder/internal/store"
	"github.com/sdmxkit/catalog-builder/internal/store/postgres"
)

// App holds the shared, long-lived services for one invocation. It is built
// once at startup by whichever command runs, and closed when it finishes.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Fetcher     *fetch.Client
	Catalogs    store.CatalogStore
	Checkpoints *checkpoint.FileStore
	Failures    *failure.Log
	History     extractor.History
	Notifier    notify.Notifier

	closers []func()
}

// New builds the App from configuration, failing fast when a critical
// service cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	metrics.Init()

	logger, closeLog, err := logging.NewWithFile(cfg.Logging.Development, cfg.Storage.ExecutionLogPath)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
	}
	a.closers = append(a.closers, closeLog)

	a.Fetcher = fetch.New(fetch.Config{
		BaseURL:          cfg.SDMX.BaseURL,
		UserAgent:        cfg.SDMX.UserAgent,
		Timeout:          cfg.RequestTimeout(),
		DirectoryTimeout: cfg.DirectoryTimeout(),
	})

	if a.Catalogs, err = newCatalogStore(ctx, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}

	if a.Checkpoints, err = checkpoint.NewFileStore(cfg.Storage.CheckpointPath); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize checkpoint store: %w", err)
	}

	if a.Failures, err = failure.NewLog(cfg.Storage.FailureLogPath); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize failure log: %w", err)
	}

	if cfg.History.Enabled {
		history, err := postgres.NewHistoryStore(ctx, postgres.HistoryStoreConfig{
			DSN:      cfg.History.DSN,
			Table:    cfg.History.Table,
			MaxConns: cfg.History.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize history store: %w", err)
		}
		logger.Info("attempt history enabled", zap.String("table", cfg.History.Table))
		a.History = historyAdapter{store: history}
		a.closers = append(a.closers, history.Close)
	}

	a.Notifier = notify.Noop{}
	if cfg.Notify.Enabled {
		client, err := pubsub.NewClient(ctx, cfg.Notify.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize pubsub client: %w", err)
		}
		topic := client.Topic(cfg.Notify.TopicName)
		logger.Info("completion notifier enabled", zap.String("topic", cfg.Notify.TopicName))
		a.Notifier = notifypubsub.New(topic)
		a.closers = append(a.closers, func() {
			topic.Stop()
			client.Close() //nolint:errcheck // shutdown path
		})
	}

	return a, nil
}

// Selector builds the retry target selector over this App's run artifacts.
func (a *App) Selector() *failure.Selector {
	return failure.NewSelector(a.Failures, a.Config.Storage.ExecutionLogPath)
}

// Close shuts down services in reverse initialization order and flushes the
// logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

func newCatalogStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.CatalogStore, error) {
	switch cfg.Storage.Provider {
	case "local":
		logger.Info("using local catalog store", zap.String("path", cfg.Storage.CatalogPath))
		s, err := store.NewLocalStore(store.LocalConfig{Path: cfg.Storage.CatalogPath})
		if err != nil {
			return nil, fmt.Errorf("initialize local store: %w", err)
		}
		return s, nil
	case "gcs":
		logger.Info("using gcs catalog store", zap.String("bucket", cfg.Storage.GCSBucket))
		s, err := store.NewGCSStore(ctx, store.GCSConfig{
			Bucket: cfg.Storage.GCSBucket,
			Object: cfg.Storage.GCSObject,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize gcs store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

// historyAdapter bridges the Postgres store to the extractor's History
// contract.
type historyAdapter struct {
	store *postgres.HistoryStore
}

func (h historyAdapter) RecordAttempt(ctx context.Context, a extractor.Attempt) error {
	return h.store.RecordAttempt(ctx, postgres.AttemptRecord{
		RunID:          a.RunID,
		ItemKey:        a.ItemKey,
		Agency:         a.Agency,
		Outcome:        a.Outcome,
		DimensionCount: a.DimensionCount,
		ErrorMessage:   a.ErrorMessage,
		AttemptedAt:    a.AttemptedAt,
	})
}
