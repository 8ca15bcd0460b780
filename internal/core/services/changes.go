package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// ChangeDetector decides which documents need indexing by comparing content
// fingerprints with the persisted state. It assumes a single writer: load
// once per run, record successes, save once at the end.
type ChangeDetector struct {
	store driven.IndexStateStore
	state *domain.IndexState
	force bool
	now   func() time.Time
}

// NewChangeDetector creates a change detector over the given state store.
func NewChangeDetector(store driven.IndexStateStore) *ChangeDetector {
	return &ChangeDetector{
		store: store,
		state: domain.NewIndexState(),
		now:   time.Now,
	}
}

// Load reads the persisted state. With force set every document is
// reported as changed, but existing records are kept until overwritten.
func (d *ChangeDetector) Load(ctx context.Context, force bool) error {
	state, err := d.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load index state: %w", err)
	}
	if state.IndexedFiles == nil {
		state.IndexedFiles = make(map[string]domain.IndexedFileRecord)
	}
	d.state = state
	d.force = force
	return nil
}

// ShouldProcess reports whether the document under key must be indexed.
// It is skipped only when a record exists with the same fingerprint and the
// run is not forced.
func (d *ChangeDetector) ShouldProcess(key, fingerprint string) bool {
	if d.force {
		return true
	}
	rec, ok := d.state.IndexedFiles[key]
	return !ok || rec.Hash != fingerprint
}

// Record stores the outcome of a successful index of key.
// Hash and IndexedAt are set from fingerprint and the current time.
func (d *ChangeDetector) Record(key, fingerprint string, rec domain.IndexedFileRecord) {
	rec.Hash = fingerprint
	rec.IndexedAt = d.now().Format(time.RFC3339)
	d.state.IndexedFiles[key] = rec
}

// Save persists the state.
func (d *ChangeDetector) Save(ctx context.Context) error {
	if err := d.store.Save(ctx, d.state); err != nil {
		return fmt.Errorf("save index state: %w", err)
	}
	return nil
}

// State returns the in-memory state.
func (d *ChangeDetector) State() *domain.IndexState {
	return d.state
}

// Fingerprint streams the given files, in order, through SHA-256 and returns
// the hex digest. Any byte change in any file changes the fingerprint.
func Fingerprint(paths ...string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		if err := hashFile(h, p); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return nil
}
