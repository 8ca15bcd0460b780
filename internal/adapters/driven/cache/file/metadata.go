package file

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// MetadataFileName is the metadata cache file inside the cache directory.
const MetadataFileName = "zotero_metadata.json"

// Ensure MetadataCache implements the interface.
var _ driven.MetadataCache = (*MetadataCache)(nil)

// MetadataCache persists extracted library metadata as JSON keyed by item key.
type MetadataCache struct {
	mu   sync.Mutex
	path string
}

// NewMetadataCache creates a cache for <cacheDir>/zotero_metadata.json.
func NewMetadataCache(cacheDir string) *MetadataCache {
	return &MetadataCache{path: filepath.Join(cacheDir, MetadataFileName)}
}

// Path returns the cache file path.
func (c *MetadataCache) Path() string {
	return c.path
}

// Load returns the cached records; ok is false when no cache file exists.
func (c *MetadataCache) Load(_ context.Context) (map[string]domain.CanonicalMetadata, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make(map[string]domain.CanonicalMetadata)
	ok, err := readJSON(c.path, &records)
	if err != nil || !ok {
		return nil, false, err
	}
	return records, true, nil
}

// Save replaces the cache file.
func (c *MetadataCache) Save(_ context.Context, records map[string]domain.CanonicalMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if records == nil {
		records = map[string]domain.CanonicalMetadata{}
	}
	return writeJSON(c.path, records)
}
