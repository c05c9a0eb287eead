package failure

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
)

// RetryMode selects which prior-run items a targeted retry re-attempts.
type RetryMode string

// Supported retry modes.
const (
	// RetryModeFailed re-derives targets from the structured failure log.
	RetryModeFailed RetryMode = "failed"
	// RetryModeRateLimited scans the execution log for quota-exhaustion
	// markers. Quota hits are deliberately not persisted as structured
	// failures, so this is the only way to recover that item set after a
	// completed run.
	// TODO: replace the log scrape with a structured quota-exhaustion
	// record once downstream tooling stops reading failed_items.jsonl.
	RetryModeRateLimited RetryMode = "rate-limited"
)

// quotaMarker matches the scheduler's quota-exhaustion log line. Zap renders
// fields as a trailing JSON object in both the console and JSON encodings,
// so the item key appears as "item": "KEY" either way.
var quotaMarker = regexp.MustCompile(`quota exhausted.*"item":\s*"([^"]+)"`)

// Selector derives retry target sets from prior-run artifacts. Both sources
// surface through the same map-of-keys shape so callers need not care that
// one is structured and the other is scraped.
type Selector struct {
	failures    *Log
	execLogPath string
}

// NewSelector builds a Selector over the failure log and execution log.
func NewSelector(failures *Log, execLogPath string) *Selector {
	return &Selector{failures: failures, execLogPath: execLogPath}
}

// Targets returns the item keys a retry in the given mode should clear from
// the processed set and re-attempt.
func (s *Selector) Targets(mode RetryMode) (map[string]struct{}, error) {
	switch mode {
	case RetryModeFailed:
		return s.failedTargets()
	case RetryModeRateLimited:
		return s.rateLimitedTargets()
	default:
		return nil, fmt.Errorf("unknown retry mode %q", mode)
	}
}

func (s *Selector) failedTargets() (map[string]struct{}, error) {
	records, err := s.failures.All()
	if err != nil {
		return nil, err
	}
	targets := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.Cause == CauseQuotaExhausted {
			// Never logged by Append, but a hand-edited file should
			// not smuggle quota hits into the failed set.
			continue
		}
		targets[rec.ItemKey] = struct{}{}
	}
	return targets, nil
}

func (s *Selector) rateLimitedTargets() (map[string]struct{}, error) {
	f, err := os.Open(s.execLogPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("open execution log: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	targets := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if m := quotaMarker.FindStringSubmatch(scanner.Text()); m != nil {
			targets[m[1]] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan execution log: %w", err)
	}
	return targets, nil
}
