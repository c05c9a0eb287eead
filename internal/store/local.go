package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sdmxkit/catalog-builder/internal/catalog"
)

// LocalConfig captures the parameters for the local filesystem store.
type LocalConfig struct {
	// Path is the catalog JSON file location.
	Path string `mapstructure:"path"`
}

// LocalStore keeps the catalog in a JSON file on the local filesystem.
type LocalStore struct {
	path string
}

// NewLocalStore creates a filesystem-backed catalog store.
func NewLocalStore(cfg LocalConfig) (*LocalStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	return &LocalStore{path: cfg.Path}, nil
}

// Load reads the catalog file. A missing file yields an empty catalog.
func (s *LocalStore) Load(_ context.Context) (catalog.Catalog, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(catalog.Catalog), false, nil
		}
		return nil, false, fmt.Errorf("read catalog: %w", err)
	}
	var cat catalog.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, false, fmt.Errorf("decode catalog: %w", err)
	}
	if cat == nil {
		cat = make(catalog.Catalog)
	}
	return cat, true, nil
}

// Save writes the catalog atomically.
func (s *LocalStore) Save(_ context.Context, cat catalog.Catalog) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}
