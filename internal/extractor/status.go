package extractor

import "sync"

// statusBox guards the Status snapshot so the status API can read progress
// while the run loop mutates it.
type statusBox struct {
	mu sync.RWMutex
	s  Status
}

func (b *statusBox) set(fn func(*Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.s)
}

func (b *statusBox) get() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.s
}
