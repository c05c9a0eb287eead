// Package store persists the catalog to durable storage.
// This abstraction keeps the extraction pipeline independent of a specific
// backend (local filesystem, Google Cloud Storage, or memory for tests).
package store

import (
	"context"

	"github.com/sdmxkit/catalog-builder/internal/catalog"
)

// CatalogStore loads and saves the consolidated catalog. Save must be
// atomic: a crash mid-write leaves the previous catalog intact.
type CatalogStore interface {
	// Load returns the stored catalog. A missing catalog is not an
	// error; it yields an empty catalog and found=false.
	Load(ctx context.Context) (cat catalog.Catalog, found bool, err error)
	Save(ctx context.Context, cat catalog.Catalog) error
}
