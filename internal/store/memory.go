package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sdmxkit/catalog-builder/internal/catalog"
)

// MemoryStore is an in-memory CatalogStore used by tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load decodes the last saved snapshot.
func (s *MemoryStore) Load(_ context.Context) (catalog.Catalog, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return make(catalog.Catalog), false, nil
	}
	var cat catalog.Catalog
	if err := json.Unmarshal(s.data, &cat); err != nil {
		return nil, false, fmt.Errorf("decode catalog: %w", err)
	}
	return cat, true, nil
}

// Save snapshots the catalog. Serializing through JSON mirrors the durable
// backends so tests catch encoding problems.
func (s *MemoryStore) Save(_ context.Context, cat catalog.Catalog) error {
	data, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.saves++
	return nil
}

// Saves reports how many snapshots were taken.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
