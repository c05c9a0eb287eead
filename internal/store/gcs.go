package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"

	"github.com/sdmxkit/catalog-builder/internal/catalog"
)

// GCSConfig captures the parameters for the Cloud Storage backend.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Object string `mapstructure:"object"`
}

// GCSStore persists the catalog as a single object in a GCS bucket. Object
// writes are atomic on the GCS side, matching the local rename semantics.
type GCSStore struct {
	client *gcs.Client
	bucket string
	object string
}

// NewGCSStore initializes the client and verifies bucket access so a
// misconfigured run fails at startup rather than hours in.
// Authentication uses Application Default Credentials.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	object := cfg.Object
	if object == "" {
		object = "catalog.json"
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		client.Close() //nolint:errcheck,gosec // startup failure takes precedence
		return nil, fmt.Errorf("check gcs bucket %q: %w", cfg.Bucket, err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, object: object}, nil
}

// Load reads the catalog object. A missing object yields an empty catalog.
func (s *GCSStore) Load(ctx context.Context) (catalog.Catalog, bool, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return make(catalog.Catalog), false, nil
		}
		return nil, false, fmt.Errorf("open catalog object: %w", err)
	}
	defer r.Close() //nolint:errcheck // read errors surface below

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("read catalog object: %w", err)
	}
	var cat catalog.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, false, fmt.Errorf("decode catalog object: %w", err)
	}
	return cat, true, nil
}

// Save overwrites the catalog object.
func (s *GCSStore) Save(ctx context.Context, cat catalog.Catalog) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close() //nolint:errcheck,gosec // write error takes precedence
		return fmt.Errorf("write catalog object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize catalog object: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
