// Package quota enforces the remote API's fixed-window request budget.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sdmxkit/catalog-builder/internal/catalog"
	"github.com/sdmxkit/catalog-builder/internal/metrics"
)

// Config holds governor configuration.
type Config struct {
	// Limit is the maximum number of requests per window.
	Limit int
	// Window is the budget interval.
	Window time.Duration
	// PaceRPS throttles granted requests below the hard budget so bursts
	// do not hammer the remote. Zero disables pacing.
	PaceRPS float64
}

// Decision is the answer to a single acquisition attempt.
type Decision struct {
	Granted    bool
	RetryAfter time.Duration
}

// Governor tracks requests issued within the current window and hands out
// yes/no/wait decisions. Acquisition checks-and-increments atomically under a
// single mutex so concurrent callers share one budget.
type Governor struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	clock       catalog.Clock
	pacer       *rate.Limiter
}

// New builds a Governor. The clock is injectable so tests can drive the
// window without sleeping.
func New(cfg Config, clock catalog.Clock) *Governor {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 60
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Hour
	}
	var pacer *rate.Limiter
	if cfg.PaceRPS > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.PaceRPS), 1)
	}
	return &Governor{
		limit:       limit,
		window:      window,
		clock:       clock,
		windowStart: clock.Now(),
		pacer:       pacer,
	}
}

// TryAcquire grants a request slot if the current window has budget left,
// incrementing the counter. A denial has no side effects and reports how long
// until the window resets.
func (g *Governor) TryAcquire() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if now.Sub(g.windowStart) >= g.window {
		g.count = 0
		g.windowStart = now
	}

	if g.count >= g.limit {
		retry := g.windowStart.Add(g.window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{Granted: false, RetryAfter: retry}
	}

	g.count++
	metrics.SetQuotaRemaining(g.limit - g.count)
	return Decision{Granted: true}
}

// Exhaust marks the rest of the current window as spent. Called when the
// remote signals 429 before the local counter reached the limit, so the
// scheduler stops issuing calls known to fail.
func (g *Governor) Exhaust() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = g.limit
	metrics.SetQuotaRemaining(0)
}

// RetryAfter reports time until the current window resets without acquiring.
func (g *Governor) RetryAfter() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	retry := g.windowStart.Add(g.window).Sub(g.clock.Now())
	if retry < 0 {
		retry = 0
	}
	return retry
}

// Pace blocks until the courtesy pacer releases a token, respecting the
// context. It is a no-op when pacing is disabled.
func (g *Governor) Pace(ctx context.Context) error {
	if g.pacer == nil {
		return nil
	}
	if err := g.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("pace request: %w", err)
	}
	return nil
}
