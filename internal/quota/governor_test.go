package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGovernor(limit int, window time.Duration) (*Governor, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1_000_000, 0).UTC()}
	return New(Config{Limit: limit, Window: window}, clk), clk
}

func TestTryAcquire_GrantsUpToLimit(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(3, time.Hour)
	for i := 0; i < 3; i++ {
		require.True(t, g.TryAcquire().Granted, "acquisition %d", i)
	}
	d := g.TryAcquire()
	require.False(t, d.Granted)
	require.Equal(t, time.Hour, d.RetryAfter)
}

func TestTryAcquire_DenialHasNoSideEffects(t *testing.T) {
	t.Parallel()

	g, clk := newTestGovernor(1, time.Hour)
	require.True(t, g.TryAcquire().Granted)

	first := g.TryAcquire()
	require.False(t, first.Granted)

	clk.Advance(10 * time.Minute)
	second := g.TryAcquire()
	require.False(t, second.Granted)
	require.Equal(t, 50*time.Minute, second.RetryAfter)
}

func TestTryAcquire_WindowReset(t *testing.T) {
	t.Parallel()

	g, clk := newTestGovernor(2, time.Hour)
	require.True(t, g.TryAcquire().Granted)
	require.True(t, g.TryAcquire().Granted)
	require.False(t, g.TryAcquire().Granted)

	clk.Advance(time.Hour)
	require.True(t, g.TryAcquire().Granted, "budget should reset after the window elapses")
}

func TestExhaust_DeniesRemainingBudget(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(60, time.Hour)
	require.True(t, g.TryAcquire().Granted)

	g.Exhaust()
	d := g.TryAcquire()
	require.False(t, d.Granted)
	require.Equal(t, time.Hour, d.RetryAfter)
}

func TestRetryAfter_ClampsToZero(t *testing.T) {
	t.Parallel()

	g, clk := newTestGovernor(1, time.Hour)
	clk.Advance(2 * time.Hour)
	require.Equal(t, time.Duration(0), g.RetryAfter())
}

func TestTryAcquire_ConcurrentCallersShareBudget(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(10, time.Hour)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire().Granted {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	require.Equal(t, 10, count)
}

func TestPace_DisabledIsNoOp(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(1, time.Hour)
	require.NoError(t, g.Pace(context.Background()))
}

func TestPace_HonorsContext(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(0, 0)}
	g := New(Config{Limit: 1, Window: time.Hour, PaceRPS: 0.001}, clk)
	require.NoError(t, g.Pace(context.Background()), "first token is available immediately")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, g.Pace(ctx))
}
