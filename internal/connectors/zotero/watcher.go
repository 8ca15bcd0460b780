package zotero

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// ChangeType classifies a storage change.
type ChangeType string

// Change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is a document-level change under the storage root.
type Change struct {
	Type ChangeType
	Item domain.LibraryItem
}

// Watcher reports document changes under a storage root.
type Watcher struct {
	root string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given storage root.
func NewWatcher(root string) *Watcher {
	return &Watcher{root: root}
}

// Watch starts watching the root and every identity-key directory below it.
// The returned channel is closed when ctx is cancelled or the watcher closes.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fw.Add(w.root); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.root, err)
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("read storage root: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && domain.IsIdentityKey(e.Name()) {
			if err := fw.Add(filepath.Join(w.root, e.Name())); err != nil {
				logger.Warn("cannot watch %s: %v", e.Name(), err)
			}
		}
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	changes := make(chan Change)
	go func() {
		defer close(changes)
		defer func() { _ = fw.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				change := w.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error: %v", err)
			}
		}
	}()

	return changes, nil
}

// handleFsEvent maps a raw filesystem event to a document change.
// New identity-key directories are added to the watch list and produce no
// change themselves.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Change {
	dir, name := filepath.Split(event.Name)
	dir = filepath.Clean(dir)

	if filepath.Clean(event.Name) != filepath.Clean(w.root) && dir == filepath.Clean(w.root) {
		if event.Op.Has(fsnotify.Create) && domain.IsIdentityKey(name) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				w.addWatch(event.Name)
			}
		}
		return nil
	}

	key := filepath.Base(dir)
	if filepath.Dir(dir) != filepath.Clean(w.root) || !domain.IsIdentityKey(key) || !IsDocument(name) {
		return nil
	}

	item := domain.LibraryItem{Key: key, Filename: name, Path: event.Name}
	switch {
	case event.Op.Has(fsnotify.Create):
		return &Change{Type: ChangeCreated, Item: item}
	case event.Op.Has(fsnotify.Write):
		return &Change{Type: ChangeUpdated, Item: item}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		return &Change{Type: ChangeDeleted, Item: item}
	default:
		return nil
	}
}

func (w *Watcher) addWatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		logger.Warn("cannot watch %s: %v", path, err)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}
