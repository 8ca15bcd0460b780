// Package zotero locates documents in a Zotero-style storage directory,
// where every attachment lives in its own directory named by an
// eight-character identity key.
package zotero

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// Ensure Locator implements the interface.
var _ driven.DocumentLocator = (*Locator)(nil)

// DocumentExtensions are the file extensions that are indexed.
var DocumentExtensions = []string{".pdf"}

// Locator enumerates documents under a storage root.
type Locator struct {
	root string
}

// NewLocator creates a locator for the given storage root.
func NewLocator(root string) *Locator {
	return &Locator{root: root}
}

// Root returns the storage root.
func (l *Locator) Root() string {
	return l.root
}

// Scan returns every document in an identity-key directory directly under
// the root, sorted by key then filename. A missing root yields an empty
// list; directories that are not identity keys are skipped silently.
func (l *Locator) Scan() ([]domain.LibraryItem, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("storage directory not found: %s", l.root)
			return []domain.LibraryItem{}, nil
		}
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	absRoot, err := filepath.Abs(l.root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	items := []domain.LibraryItem{}
	for _, entry := range entries {
		if !entry.IsDir() || !domain.IsIdentityKey(entry.Name()) {
			continue
		}

		dir := filepath.Join(absRoot, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("cannot read %s: %v", dir, err)
			continue
		}

		for _, f := range files {
			if f.IsDir() || !IsDocument(f.Name()) {
				continue
			}
			items = append(items, domain.LibraryItem{
				Key:      entry.Name(),
				Filename: f.Name(),
				Path:     filepath.Join(dir, f.Name()),
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Key != items[j].Key {
			return items[i].Key < items[j].Key
		}
		return items[i].Filename < items[j].Filename
	})

	logger.Debug("found %d documents under %s", len(items), l.root)
	return items, nil
}

// IsDocument reports whether name has an indexable extension.
func IsDocument(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := filepath.Ext(name)
	for _, e := range DocumentExtensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
