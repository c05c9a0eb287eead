package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sdmxkit/catalog-builder/internal/app"
	"github.com/sdmxkit/catalog-builder/internal/extractor"
	"github.com/sdmxkit/catalog-builder/internal/failure"
)

// newRetryCmd creates the 'retry' subcommand: a targeted re-run over only
// previously-failed or previously-rate-limited items.
func newRetryCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Re-attempts previously failed or rate-limited items",
		Long: `Derives a target set from a prior run and re-attempts exactly those
items under the current quota. Mode "failed" reads the structured failure
log; mode "rate-limited" scans the execution log for quota-exhaustion
markers, since quota hits are never recorded as failures. Targets are
cleared from the checkpoint's processed set before the run.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			retryMode := failure.RetryMode(mode)
			targets, err := appInstance.Selector().Targets(retryMode)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				appInstance.Logger.Info("nothing to retry", zap.String("mode", mode))
				return nil
			}
			appInstance.Logger.Info("retry targets selected",
				zap.String("mode", mode),
				zap.Int("count", len(targets)))

			if err := scopeCheckpointToTargets(cmd.Context(), appInstance, targets); err != nil {
				return err
			}
			if retryMode == failure.RetryModeFailed {
				if err := appInstance.Failures.Prune(targets); err != nil {
					return fmt.Errorf("prune failure log: %w", err)
				}
			}

			return runBuild(cmd.Context(), appInstance, extractor.Config{
				TransientRetries: appInstance.Config.Extractor.TransientRetries,
				RetryBackoff:     appInstance.Config.RetryBackoff(),
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(failure.RetryModeFailed),
		`retry mode: "failed" or "rate-limited"`)
	return cmd
}

// scopeCheckpointToTargets arranges the checkpoint so that exactly the target
// items are remaining. With an intact checkpoint the targets are removed from
// its processed set. After a completed run the checkpoint is gone, so one is
// seeded from the persisted catalog marking every other known item processed.
func scopeCheckpointToTargets(ctx context.Context, a *app.App, targets map[string]struct{}) error {
	_, exists, err := a.Checkpoints.Load()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if exists {
		if err := a.Checkpoints.RemoveTargets(targets, time.Now().UTC()); err != nil {
			return fmt.Errorf("clear targets from checkpoint: %w", err)
		}
		return nil
	}

	cat, _, err := a.Catalogs.Load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	processed := make(map[string]struct{})
	for key := range cat.Items() {
		if _, targeted := targets[key]; !targeted {
			processed[key] = struct{}{}
		}
	}
	if err := a.Checkpoints.Save(processed, time.Now().UTC()); err != nil {
		return fmt.Errorf("seed checkpoint for retry: %w", err)
	}
	return nil
}
