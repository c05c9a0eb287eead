// Package extractor drives the checkpointed, quota-governed extraction run.
package extractor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdmxkit/catalog-builder/internal/catalog"
	"github.com/sdmxkit/catalog-builder/internal/checkpoint"
	"github.com/sdmxkit/catalog-builder/internal/failure"
	"github.com/sdmxkit/catalog-builder/internal/metrics"
	"github.com/sdmxkit/catalog-builder/internal/notify"
	"github.com/sdmxkit/catalog-builder/internal/quota"
	"github.com/sdmxkit/catalog-builder/internal/sdmx"
	"github.com/sdmxkit/catalog-builder/internal/store"
)

// State is the scheduler's current phase.
type State string

// Scheduler states.
const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateExtracting  State = "extracting"
	StateThrottled   State = "throttled"
	StateCompleted   State = "completed"
	StateAborted     State = "aborted"
)

// Fetcher retrieves SDMX documents. The structure endpoint is the
// quota-governed one.
type Fetcher interface {
	ListDataflows(ctx context.Context) ([]byte, error)
	GetStructure(ctx context.Context, agency, key string) ([]byte, error)
}

// Attempt is one structure fetch attempt reported to the history sink.
type Attempt struct {
	RunID          string
	ItemKey        string
	Agency         string
	Outcome        string
	DimensionCount int
	ErrorMessage   string
	AttemptedAt    time.Time
}

// History receives one record per attempted item. Implementations must not
// block the run on their own failures; the extractor logs and continues.
type History interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}

// Config tunes the extraction run.
type Config struct {
	// SampleLimit stops the run after N granted attempts. Zero means no
	// limit. A sample run leaves the checkpoint in place.
	SampleLimit int
	// TransientRetries bounds re-fetches of a transiently failing item
	// within a single quota acquisition before the failure escalates.
	TransientRetries int
	// RetryBackoff is the wait between transient retries.
	RetryBackoff time.Duration
}

// Status is a point-in-time snapshot of run progress for the status API.
type Status struct {
	RunID         string    `json:"run_id"`
	State         State     `json:"state"`
	Total         int       `json:"total"`
	Processed     int       `json:"processed"`
	Remaining     int       `json:"remaining"`
	Extracted     int       `json:"extracted"`
	Failed        int       `json:"failed"`
	QuotaDeferred int       `json:"quota_deferred"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	ResumeAt      time.Time `json:"resume_at,omitempty"`
}

// Params collects the extractor's collaborators.
type Params struct {
	Config      Config
	Fetcher     Fetcher
	Governor    *quota.Governor
	Catalogs    store.CatalogStore
	Checkpoints *checkpoint.FileStore
	Failures    *failure.Log
	Clock       catalog.Clock
	Logger      *zap.Logger
	History     History        // optional
	Notifier    notify.Notifier // optional
}

// Extractor owns the quota counter and processed set for the duration of a
// run. A single goroutine drives the loop; Status is safe to call from others.
type Extractor struct {
	cfg         Config
	fetcher     Fetcher
	governor    *quota.Governor
	catalogs    store.CatalogStore
	checkpoints *checkpoint.FileStore
	failures    *failure.Log
	clock       catalog.Clock
	logger      *zap.Logger
	history     History
	notifier    notify.Notifier
	runID       string

	status statusBox
}

// New builds an Extractor. Required collaborators are validated up front so a
// misconfigured run aborts before touching the remote.
func New(p Params) (*Extractor, error) {
	if p.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if p.Governor == nil {
		return nil, fmt.Errorf("quota governor is required")
	}
	if p.Catalogs == nil {
		return nil, fmt.Errorf("catalog store is required")
	}
	if p.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if p.Failures == nil {
		return nil, fmt.Errorf("failure log is required")
	}
	if p.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Notifier == nil {
		p.Notifier = notify.Noop{}
	}
	if p.Config.TransientRetries < 0 {
		p.Config.TransientRetries = 0
	}
	runID := uuid.NewString()
	e := &Extractor{
		cfg:         p.Config,
		fetcher:     p.Fetcher,
		governor:    p.Governor,
		catalogs:    p.Catalogs,
		checkpoints: p.Checkpoints,
		failures:    p.Failures,
		clock:       p.Clock,
		logger:      p.Logger.With(zap.String("run_id", runID)),
		history:     p.History,
		notifier:    p.Notifier,
		runID:       runID,
	}
	e.status.set(func(s *Status) {
		s.RunID = runID
		s.State = StateIdle
	})
	return e, nil
}

// Status returns a snapshot of run progress.
func (e *Extractor) Status() Status {
	return e.status.get()
}

// Run executes the pipeline: discover the directory, compute remaining work
// from the checkpoint, then extract item by item under the quota governor
// until nothing remains. Re-invoking with an intact checkpoint and unchanged
// directory resumes exactly where the prior run stopped.
func (e *Extractor) Run(ctx context.Context) error {
	started := e.clock.Now()
	e.status.set(func(s *Status) {
		s.State = StateDiscovering
		s.StartedAt = started
	})

	cat, items, err := e.discover(ctx)
	if err != nil {
		e.status.set(func(s *Status) { s.State = StateAborted })
		return err
	}

	e.status.set(func(s *Status) { s.Total = len(items) })
	e.logger.Info("directory discovered",
		zap.Int("datasets", len(cat)),
		zap.Int("items", len(items)))

	granted := 0
	for {
		processed, _, err := e.checkpoints.Load()
		if err != nil {
			e.status.set(func(s *Status) { s.State = StateAborted })
			return fmt.Errorf("load checkpoint: %w", err)
		}
		remaining := remainingKeys(items, processed)
		e.status.set(func(s *Status) {
			s.State = StateExtracting
			s.Processed = len(processed)
			s.Remaining = len(remaining)
		})
		if len(remaining) == 0 {
			return e.complete(ctx, cat, started)
		}

		e.logger.Info("extraction pass",
			zap.Int("total", len(items)),
			zap.Int("processed", len(processed)),
			zap.Int("remaining", len(remaining)))

		throttledAfter, err := e.pass(ctx, cat, items, processed, remaining, &granted)
		if err != nil {
			return err
		}
		if throttledAfter < 0 {
			// Sample budget spent. The checkpoint stays so a full run
			// picks up from here.
			e.status.set(func(s *Status) { s.State = StateCompleted })
			e.logger.Info("sample run finished", zap.Int("attempted", granted))
			return nil
		}
		if throttledAfter > 0 {
			if err := e.throttle(ctx, throttledAfter); err != nil {
				return err
			}
		}
	}
}

// discover loads the dataset directory and folds it into the persisted
// catalog. Directory failures are unrecoverable: the checkpoint stays intact.
func (e *Extractor) discover(ctx context.Context) (catalog.Catalog, map[string]catalog.Item, error) {
	raw, err := e.fetcher.ListDataflows(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch dataset directory: %w", err)
	}
	discovered, err := sdmx.ParseDataflows(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parse dataset directory: %w", err)
	}

	cat, _, err := e.catalogs.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	if cat == nil {
		cat = catalog.Catalog{}
	}
	cat.Update(discovered)
	return cat, cat.Items(), nil
}

// pass attempts remaining items in order until the set is exhausted, quota
// runs out, or the sample budget is spent. It returns how long to stay
// throttled (0 = pass finished, <0 = sample budget spent).
func (e *Extractor) pass(ctx context.Context, cat catalog.Catalog, items map[string]catalog.Item, processed map[string]struct{}, remaining []string, granted *int) (time.Duration, error) {
	for _, key := range remaining {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("run canceled: %w", err)
		}
		if e.cfg.SampleLimit > 0 && *granted >= e.cfg.SampleLimit {
			return -1, nil
		}

		decision := e.governor.TryAcquire()
		if !decision.Granted {
			e.logger.Info("quota window spent",
				zap.Duration("retry_after", decision.RetryAfter))
			return decision.RetryAfter, nil
		}
		*granted++
		if err := e.governor.Pace(ctx); err != nil {
			return 0, err
		}

		item := items[key]
		outcome, err := e.extractOne(ctx, cat, processed, item)
		if err != nil {
			return 0, err
		}
		if outcome == outcomeQuotaDeferred {
			// The remote said 429 before our counter filled up. The
			// governor is already exhausted; wait out the window.
			return e.governor.RetryAfter(), nil
		}
	}
	return 0, nil
}

const (
	outcomeExtracted     = "extracted"
	outcomeFailed        = "failed"
	outcomeQuotaDeferred = "quota-deferred"
)

// extractOne fetches, parses and merges a single item, then persists the
// catalog and checkpoint in that order so the checkpoint never claims work
// the catalog lacks.
func (e *Extractor) extractOne(ctx context.Context, cat catalog.Catalog, processed map[string]struct{}, item catalog.Item) (string, error) {
	dims, fetchErr := e.fetchStructure(ctx, item)

	if fetchErr != nil {
		cause := failure.Classify(fetchErr)
		if cause == failure.CauseQuotaExhausted {
			e.logger.Warn("quota exhausted",
				zap.String("item", item.Key),
				zap.String("agency", item.Agency))
			e.governor.Exhaust()
			metrics.ObserveItem(outcomeQuotaDeferred)
			e.status.set(func(s *Status) { s.QuotaDeferred++ })
			e.recordAttempt(ctx, item, outcomeQuotaDeferred, 0, fetchErr)
			return outcomeQuotaDeferred, nil
		}

		e.logger.Warn("item failed",
			zap.String("item", item.Key),
			zap.String("cause", string(cause)),
			zap.Error(fetchErr))
		if err := e.failures.Append(failure.Record{
			ItemKey:   item.Key,
			Agency:    item.Agency,
			Cause:     cause,
			Message:   fetchErr.Error(),
			Timestamp: e.clock.Now(),
		}); err != nil {
			return "", fmt.Errorf("append failure record: %w", err)
		}
		if err := e.markProcessed(ctx, cat, processed, item.Key); err != nil {
			return "", err
		}
		metrics.ObserveItem(outcomeFailed)
		e.status.set(func(s *Status) {
			s.Failed++
			s.Processed++
			s.Remaining--
		})
		e.recordAttempt(ctx, item, outcomeFailed, 0, fetchErr)
		return outcomeFailed, nil
	}

	n := cat.MergeDimensions(item.Key, dims)
	if err := e.markProcessed(ctx, cat, processed, item.Key); err != nil {
		return "", err
	}
	e.logger.Info("dimensions merged",
		zap.String("item", item.Key),
		zap.Int("dimensions", len(dims)),
		zap.Int("datasets", n))
	metrics.ObserveItem(outcomeExtracted)
	e.status.set(func(s *Status) {
		s.Extracted++
		s.Processed++
		s.Remaining--
	})
	e.recordAttempt(ctx, item, outcomeExtracted, len(dims), nil)
	return outcomeExtracted, nil
}

// fetchStructure performs the fetch+parse with bounded transient retries
// inside the single quota acquisition already granted for this item.
func (e *Extractor) fetchStructure(ctx context.Context, item catalog.Item) ([]catalog.Dimension, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.TransientRetries; attempt++ {
		if attempt > 0 {
			e.logger.Debug("retrying item",
				zap.String("item", item.Key),
				zap.Int("attempt", attempt))
			if err := sleepCtx(ctx, e.cfg.RetryBackoff); err != nil {
				return nil, err
			}
		}
		raw, err := e.fetcher.GetStructure(ctx, item.Agency, item.Key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("run canceled: %w", ctx.Err())
			}
			lastErr = err
			if failure.Classify(err) == failure.CauseTransient {
				continue
			}
			return nil, err
		}
		dims, err := sdmx.ParseDimensions(raw)
		if err != nil {
			return nil, err
		}
		return dims, nil
	}
	return nil, lastErr
}

// markProcessed persists the catalog first and the checkpoint second.
func (e *Extractor) markProcessed(ctx context.Context, cat catalog.Catalog, processed map[string]struct{}, key string) error {
	if err := e.catalogs.Save(ctx, cat); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	processed[key] = struct{}{}
	if err := e.checkpoints.Save(processed, e.clock.Now()); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// throttle waits out the quota window. The wait is cancellable so shutdown
// does not sleep through a termination signal; the checkpoint already holds
// everything needed to resume.
func (e *Extractor) throttle(ctx context.Context, wait time.Duration) error {
	resumeAt := e.clock.Now().Add(wait)
	e.status.set(func(s *Status) {
		s.State = StateThrottled
		s.ResumeAt = resumeAt
	})
	e.logger.Info("throttled until quota window resets",
		zap.Duration("wait", wait),
		zap.Time("resume_at", resumeAt))
	metrics.ObserveThrottleWait(wait)

	if err := sleepCtx(ctx, wait); err != nil {
		return err
	}
	e.status.set(func(s *Status) { s.ResumeAt = time.Time{} })
	return nil
}

// complete finalizes a run whose remaining set is empty: persist the catalog,
// drop the checkpoint, report validation counts and notify downstream.
func (e *Extractor) complete(ctx context.Context, cat catalog.Catalog, started time.Time) error {
	if err := e.catalogs.Save(ctx, cat); err != nil {
		return fmt.Errorf("save final catalog: %w", err)
	}
	if err := e.checkpoints.Delete(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	metrics.SetCatalogDatasets(len(cat))

	v := cat.Validate()
	e.logger.Info("run completed",
		zap.Int("datasets", v.TotalDatasets),
		zap.Int("with_dimensions", v.HasDimensions),
		zap.Int("without_dimensions", v.MissingDimensions),
		zap.Int("missing_names", v.MissingNames),
		zap.Int("missing_descriptions", v.MissingDescriptions))

	st := e.Status()
	finished := e.clock.Now()
	e.status.set(func(s *Status) { s.State = StateCompleted })
	if _, err := e.notifier.Notify(ctx, notify.RunSummary{
		RunID:             e.runID,
		Completed:         true,
		Datasets:          v.TotalDatasets,
		WithDimensions:    v.HasDimensions,
		WithoutDimensions: v.MissingDimensions,
		FailedItems:       st.Failed,
		QuotaDeferred:     st.QuotaDeferred,
		StartedAt:         started,
		FinishedAt:        finished,
	}); err != nil {
		e.logger.Error("completion notification failed", zap.Error(err))
	}
	return nil
}

func (e *Extractor) recordAttempt(ctx context.Context, item catalog.Item, outcome string, dims int, attemptErr error) {
	if e.history == nil {
		return
	}
	msg := ""
	if attemptErr != nil {
		msg = attemptErr.Error()
	}
	err := e.history.RecordAttempt(ctx, Attempt{
		RunID:          e.runID,
		ItemKey:        item.Key,
		Agency:         item.Agency,
		Outcome:        outcome,
		DimensionCount: dims,
		ErrorMessage:   msg,
		AttemptedAt:    e.clock.Now(),
	})
	if err != nil {
		e.logger.Error("record attempt history failed",
			zap.String("item", item.Key), zap.Error(err))
	}
}

func remainingKeys(items map[string]catalog.Item, processed map[string]struct{}) []string {
	keys := make([]string, 0, len(items))
	for key := range items {
		if _, done := processed[key]; !done {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("run canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
