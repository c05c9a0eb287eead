package failure

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdmxkit/catalog-builder/internal/store"
)

// Log is the durable, append-only record of permanent failures. One JSON
// object per line so appends never rewrite prior entries.
type Log struct {
	path string
}

// NewLog builds a Log at the given path.
func NewLog(path string) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("failure log path is required")
	}
	return &Log{path: path}, nil
}

// Append persists one failure record. Quota-exhausted causes are rejected:
// they are expected flow control, not failures.
func (l *Log) Append(rec Record) error {
	if rec.Cause == CauseQuotaExhausted {
		return fmt.Errorf("quota exhaustion is not a loggable failure")
	}
	if rec.ItemKey == "" {
		return fmt.Errorf("failure record requires an item key")
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("create failure log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open failure log: %w", err)
	}
	defer f.Close() //nolint:errcheck // write errors surface below

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode failure record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append failure record: %w", err)
	}
	return nil
}

// All returns every persisted failure record in append order. A missing log
// yields an empty slice.
func (l *Log) All() ([]Record, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read failure log: %w", err)
	}

	var records []Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode failure log line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan failure log: %w", err)
	}
	return records, nil
}

// Prune rewrites the log without records for the targeted keys. Used by the
// retry surface so re-attempted items do not linger as stale failures.
func (l *Log) Prune(targets map[string]struct{}) error {
	records, err := l.All()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	kept := 0
	for _, rec := range records {
		if _, ok := targets[rec.ItemKey]; ok {
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode failure record: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
		kept++
	}
	if kept == len(records) {
		return nil
	}
	if err := store.WriteFileAtomic(l.path, buf.Bytes()); err != nil {
		return fmt.Errorf("rewrite failure log: %w", err)
	}
	return nil
}
