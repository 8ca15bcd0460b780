package file

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// StateFileName is the change-detection cache file inside the cache directory.
const StateFileName = "index_state.json"

// Ensure StateStore implements the interface.
var _ driven.IndexStateStore = (*StateStore)(nil)

// StateStore persists the index state as JSON.
type StateStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStateStore creates a store for <cacheDir>/index_state.json.
// Nothing is read or written until Load or Save.
func NewStateStore(cacheDir string) *StateStore {
	return &StateStore{
		path: filepath.Join(cacheDir, StateFileName),
		now:  time.Now,
	}
}

// Path returns the state file path.
func (s *StateStore) Path() string {
	return s.path
}

// Load returns the persisted state, or an empty state when the file is absent.
func (s *StateStore) Load(_ context.Context) (*domain.IndexState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := domain.NewIndexState()
	if _, err := readJSON(s.path, state); err != nil {
		return nil, err
	}
	if state.IndexedFiles == nil {
		state.IndexedFiles = make(map[string]domain.IndexedFileRecord)
	}
	return state, nil
}

// Save stamps last_indexed and replaces the state file.
func (s *StateStore) Save(_ context.Context, state *domain.IndexState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.LastIndexed = s.now().Format(time.RFC3339)
	return writeJSON(s.path, state)
}
