package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// Ensure MetadataService implements the interface.
var _ driving.MetadataService = (*MetadataService)(nil)

// DatabaseLocator searches well-known locations for the library database.
type DatabaseLocator func() (path string, ok bool)

// MetadataService reads bibliographic metadata from the library database
// and keeps a JSON cache of the result.
type MetadataService struct {
	cfg    domain.ZoteroConfig
	cache  driven.MetadataCache
	open   driven.BibliographyOpener
	locate DatabaseLocator
}

// NewMetadataService creates a metadata service.
// The cache and locate parameters are optional (can be nil).
func NewMetadataService(
	cfg domain.ZoteroConfig,
	cache driven.MetadataCache,
	open driven.BibliographyOpener,
	locate DatabaseLocator,
) *MetadataService {
	return &MetadataService{
		cfg:    cfg,
		cache:  cache,
		open:   open,
		locate: locate,
	}
}

// Extract returns every regular item of the library.
func (s *MetadataService) Extract(
	ctx context.Context, opts driving.ExtractOptions,
) (map[string]domain.CanonicalMetadata, error) {
	if !opts.Force && opts.Database == "" && s.cache != nil {
		records, ok, err := s.cache.Load(ctx)
		switch {
		case err != nil:
			logger.Warn("ignoring metadata cache: %v", err)
		case ok:
			logger.Debug("using cached metadata for %d items", len(records))
			return records, nil
		}
	}

	path, err := s.DatabasePath(opts.Database)
	if err != nil {
		return map[string]domain.CanonicalMetadata{}, err
	}

	db, err := s.open(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrLibraryNotFound) {
			return map[string]domain.CanonicalMetadata{}, err
		}
		return nil, fmt.Errorf("open library database: %w", err)
	}
	defer db.Close()

	logger.Info("reading library database %s", path)
	records, err := db.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("read library items: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Save(ctx, records); err != nil {
			logger.Warn("failed to write metadata cache: %v", err)
		}
	}
	return records, nil
}

// ResolveAttachment returns the parent item of the attachment stored under
// key, or domain.ErrNotFound.
func (s *MetadataService) ResolveAttachment(ctx context.Context, key string) (*domain.CanonicalMetadata, error) {
	path, err := s.DatabasePath("")
	if err != nil {
		return nil, err
	}

	db, err := s.open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open library database: %w", err)
	}
	defer db.Close()

	return db.ItemByAttachmentKey(ctx, key)
}

// DatabasePath resolves the library database. Precedence: override, the
// configured database, <data_dir>/zotero.sqlite, then discovery. Explicit
// paths must exist; a missing database wraps domain.ErrLibraryNotFound.
func (s *MetadataService) DatabasePath(override string) (string, error) {
	for _, explicit := range []string{override, s.cfg.Database} {
		if explicit == "" {
			continue
		}
		if !fileExists(explicit) {
			return "", fmt.Errorf("library database %s: %w", explicit, domain.ErrLibraryNotFound)
		}
		return explicit, nil
	}

	if s.cfg.DataDir != "" {
		if p := filepath.Join(s.cfg.DataDir, "zotero.sqlite"); fileExists(p) {
			return p, nil
		}
	}

	if s.locate != nil {
		if p, ok := s.locate(); ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("no library database configured or discovered: %w", domain.ErrLibraryNotFound)
}

// AttachmentMapping indexes items by the identity keys of their stored
// attachments, so a storage directory resolves to its parent item.
func AttachmentMapping(items map[string]domain.CanonicalMetadata) map[string]*domain.CanonicalMetadata {
	mapping := make(map[string]*domain.CanonicalMetadata)
	for key := range items {
		item := items[key]
		for _, att := range item.AttachmentKeys() {
			mapping[att] = &item
		}
	}
	return mapping
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
