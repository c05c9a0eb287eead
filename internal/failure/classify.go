// Package failure classifies extraction errors and drives targeted retries.
package failure

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sdmxkit/catalog-builder/internal/fetch"
	"github.com/sdmxkit/catalog-builder/internal/sdmx"
)

// Cause buckets an extraction error. Quota exhaustion is flow control, not a
// failure: it is never persisted to the failure log and never marks an item
// processed.
type Cause string

// Supported failure causes.
const (
	CauseNotFound       Cause = "not-found"
	CauseMalformed      Cause = "malformed-response"
	CauseTransient      Cause = "transient-network"
	CauseQuotaExhausted Cause = "quota-exhausted"
)

// Permanent reports whether the cause marks the item processed for good.
// Transient errors are only permanent after the retry budget is spent; the
// scheduler handles that escalation.
func (c Cause) Permanent() bool {
	return c == CauseNotFound || c == CauseMalformed
}

// Record is one persisted failure log entry.
type Record struct {
	ItemKey   string    `json:"item_key"`
	Agency    string    `json:"agency"`
	Cause     Cause     `json:"cause"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Classify maps an extraction error to its cause.
func Classify(err error) Cause {
	if errors.Is(err, sdmx.ErrMalformedResponse) {
		return CauseMalformed
	}

	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return CauseQuotaExhausted
		case statusErr.StatusCode == http.StatusRequestTimeout:
			return CauseTransient
		case statusErr.StatusCode >= 500:
			return CauseTransient
		default:
			// 404 and the remaining client errors mean the remote will
			// never serve this item.
			return CauseNotFound
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return CauseTransient
	}

	// Unknown errors are treated as transient so they get the bounded
	// retry budget before escalation.
	return CauseTransient
}
