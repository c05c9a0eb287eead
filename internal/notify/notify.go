// Package notify defines the run-completion notification contract.
package notify

import (
	"context"
	"time"
)

// RunSummary is the payload published when a catalog build finishes.
type RunSummary struct {
	RunID             string    `json:"run_id"`
	Completed         bool      `json:"completed"`
	Datasets          int       `json:"datasets"`
	WithDimensions    int       `json:"with_dimensions"`
	WithoutDimensions int       `json:"without_dimensions"`
	FailedItems       int       `json:"failed_items"`
	QuotaDeferred     int       `json:"quota_deferred"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Notifier publishes a run summary to interested downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) (string, error)
}

// Noop is a Notifier that discards summaries.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, RunSummary) (string, error) {
	return "", nil
}
