// Package checkpoint persists extraction progress so interrupted runs resume
// where they left off.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sdmxkit/catalog-builder/internal/store"
)

// Snapshot is the durable record of which items have been attempted.
type Snapshot struct {
	Processed []string  `json:"processed"`
	SavedAt   time.Time `json:"saved_at"`
}

// FileStore reads and writes the checkpoint file. Its existence signals an
// incomplete run to a future invocation; a completed run deletes it.
type FileStore struct {
	path string
}

// NewFileStore builds a FileStore at the given path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	return &FileStore{path: path}, nil
}

// Load returns the processed set from the checkpoint file. A missing file
// yields an empty set and found=false.
func (s *FileStore) Load() (map[string]struct{}, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]struct{}), false, nil
		}
		return nil, false, fmt.Errorf("read checkpoint: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	processed := make(map[string]struct{}, len(snap.Processed))
	for _, key := range snap.Processed {
		processed[key] = struct{}{}
	}
	return processed, true, nil
}

// Save writes the processed set atomically, stamped with savedAt.
func (s *FileStore) Save(processed map[string]struct{}, savedAt time.Time) error {
	keys := make([]string, 0, len(processed))
	for key := range processed {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	data, err := json.MarshalIndent(Snapshot{Processed: keys, SavedAt: savedAt}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := store.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Delete removes the checkpoint file. Deleting an absent checkpoint is not
// an error.
func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// RemoveTargets drops the given keys from the persisted processed set so a
// targeted retry attempts them again. Saving is skipped when no checkpoint
// exists or nothing changed.
func (s *FileStore) RemoveTargets(targets map[string]struct{}, savedAt time.Time) error {
	processed, found, err := s.Load()
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	changed := false
	for key := range targets {
		if _, ok := processed[key]; ok {
			delete(processed, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.Save(processed, savedAt)
}
