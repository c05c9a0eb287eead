package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sdmxkit/catalog-builder/internal/api"
	"github.com/sdmxkit/catalog-builder/internal/app"
	"github.com/sdmxkit/catalog-builder/internal/clock/system"
	"github.com/sdmxkit/catalog-builder/internal/extractor"
	"github.com/sdmxkit/catalog-builder/internal/quota"
)

// newBuildCmd creates the 'build' subcommand: the full extraction run.
// Resume is the default behavior when an intact checkpoint exists.
func newBuildCmd() *cobra.Command {
	var sample int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Runs the full catalog extraction",
		Long: `Fetches the dataflow directory, then walks every not-yet-processed
structure definition under the hourly quota, merging dimensions into the
catalog file. With an intact checkpoint the run resumes instead of starting
over. Use --sample to limit the run to a handful of items for a quick test.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), appInstance, extractor.Config{
				SampleLimit:      sample,
				TransientRetries: appInstance.Config.Extractor.TransientRetries,
				RetryBackoff:     appInstance.Config.RetryBackoff(),
			})
		},
	}

	cmd.Flags().IntVar(&sample, "sample", 0, "stop after N items (0 = no limit)")
	return cmd
}

func runBuild(ctx context.Context, a *app.App, cfg extractor.Config) error {
	ex, err := newExtractor(a, cfg)
	if err != nil {
		return err
	}

	stopAPI, err := startStatusServer(a, ex)
	if err != nil {
		return err
	}
	defer stopAPI()

	if err := ex.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			a.Logger.Info("run interrupted; checkpoint preserved for resume")
			return nil
		}
		return fmt.Errorf("run extraction: %w", err)
	}
	return nil
}

func newExtractor(a *app.App, cfg extractor.Config) (*extractor.Extractor, error) {
	governor := quota.New(quota.Config{
		Limit:   a.Config.Quota.Limit,
		Window:  a.Config.QuotaWindow(),
		PaceRPS: a.Config.Quota.PaceRPS,
	}, system.New())

	ex, err := extractor.New(extractor.Params{
		Config:      cfg,
		Fetcher:     a.Fetcher,
		Governor:    governor,
		Catalogs:    a.Catalogs,
		Checkpoints: a.Checkpoints,
		Failures:    a.Failures,
		Clock:       system.New(),
		Logger:      a.Logger,
		History:     a.History,
		Notifier:    a.Notifier,
	})
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
	return ex, nil
}

// startStatusServer exposes /healthz, /metrics and /v1/run/status while a
// run is in flight. Returns a stop function; a no-op when disabled.
func startStatusServer(a *app.App, ex *extractor.Extractor) (func(), error) {
	if !a.Config.Server.Enabled {
		return func() {}, nil
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           api.NewServer(ex, a.Logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.Logger.Info("status server started", zap.Int("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("status server error", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("status server shutdown error", zap.Error(err))
		}
	}, nil
}
