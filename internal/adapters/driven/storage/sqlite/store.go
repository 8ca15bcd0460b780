package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/SWHsz/LocalKnowledge/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Store is a SQLite-based chunk store with exact cosine similarity search.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the vector store at dbPath, creating parent
// directories as needed.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("vector store path is empty: %w", domain.ErrVectorStoreUnavailable)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating vector store directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Replace removes all chunks of the given identity keys and inserts chunks
// in one transaction.
func (s *Store) Replace(ctx context.Context, keys []string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	del, err := tx.PrepareContext(ctx, "DELETE FROM chunks WHERE identity_key = ?")
	if err != nil {
		return fmt.Errorf("preparing delete: %w", err)
	}
	defer del.Close()

	for _, key := range keys {
		if _, err := del.ExecContext(ctx, key); err != nil {
			return fmt.Errorf("deleting chunks of %s: %w", key, err)
		}
	}

	ins, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(id, identity_key, position, page, total_pages, title, authors, year,
			 source, file_path, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer ins.Close()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding: %w", c.ID, domain.ErrInvalidInput)
		}
		m := c.Meta
		if _, err := ins.ExecContext(ctx, c.ID, m.IdentityKey, c.Position, m.Page, m.TotalPages,
			m.Title, m.Authors, m.Year, m.Source, m.FilePath, c.Text,
			float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search scans every chunk and returns the k with the highest cosine
// similarity to query, best first.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]domain.Citation, error) {
	if k <= 0 {
		return []domain.Citation{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_key, position, page, total_pages, title, authors, year,
		       source, file_path, content, embedding
		FROM chunks
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	qnorm := norm(query)
	hits := make([]domain.Citation, 0, k+1)
	for rows.Next() {
		c, blob, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		score := cosine(query, qnorm, bytesToFloat32Slice(blob))
		if len(hits) == k && score <= hits[k-1].Score {
			continue
		}
		hits = insertSorted(hits, domain.Citation{Chunk: *c, Score: score}, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return hits, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// insertSorted inserts hit keeping hits in descending score order and at
// most k long.
func insertSorted(hits []domain.Citation, hit domain.Citation, k int) []domain.Citation {
	i := sort.Search(len(hits), func(i int) bool { return hits[i].Score < hit.Score })
	hits = append(hits, domain.Citation{})
	copy(hits[i+1:], hits[i:])
	hits[i] = hit
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the dimensions differ.
func cosine(a []float32, anorm float64, b []float32) float64 {
	if len(a) != len(b) || anorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	bnorm := norm(b)
	if bnorm == 0 {
		return 0
	}
	return dot / (anorm * bnorm)
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func scanChunk(rows *sql.Rows) (*domain.Chunk, []byte, error) {
	var c domain.Chunk
	var blob []byte
	if err := rows.Scan(&c.ID, &c.Meta.IdentityKey, &c.Position, &c.Meta.Page, &c.Meta.TotalPages,
		&c.Meta.Title, &c.Meta.Authors, &c.Meta.Year, &c.Meta.Source, &c.Meta.FilePath,
		&c.Text, &blob); err != nil {
		return nil, nil, fmt.Errorf("scanning chunk: %w", err)
	}
	return &c, blob, nil
}
