// Package zotero reads bibliographic metadata from a Zotero database.
//
// The database is only ever opened read-only. When the reference manager
// holds a lock on it, the reader works on a temporary copy which is removed
// on Close.
package zotero

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// Ensure Reader implements the interface.
var _ driven.BibliographyDatabase = (*Reader)(nil)

// storagePrefix marks attachments kept in the storage directory.
const storagePrefix = "storage:"

var markupPattern = regexp.MustCompile(`<[^>]+>`)

// Reader reads items from a Zotero database.
type Reader struct {
	db       *sql.DB
	path     string
	tempPath string
}

// Open opens the database at path read-only, falling back to a temporary
// copy when the live file cannot be read.
func Open(ctx context.Context, path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database %s: %w", path, domain.ErrLibraryNotFound)
		}
		return nil, fmt.Errorf("stat database: %w", err)
	}

	db, err := openLive(ctx, path)
	if err == nil {
		return &Reader{db: db, path: path}, nil
	}
	logger.Info("database is locked (%v), reading a temporary copy", err)

	tempPath, err := copyDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("copying locked database: %w", err)
	}

	db, err = sql.Open("sqlite", tempPath)
	if err != nil {
		removeCopy(tempPath)
		return nil, fmt.Errorf("opening database copy: %w", err)
	}
	if err := probe(ctx, db); err != nil {
		db.Close()
		removeCopy(tempPath)
		return nil, fmt.Errorf("reading database copy: %w", err)
	}

	return &Reader{db: db, path: path, tempPath: tempPath}, nil
}

// openLive opens the live database; replaced in tests to simulate a lock.
var openLive = openReadOnly

// Opener adapts Open to driven.BibliographyOpener.
func Opener(ctx context.Context, path string) (driven.BibliographyDatabase, error) {
	return Open(ctx, path)
}

func openReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}
	if err := probe(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// readOnlyDSN builds a SQLite URI that opens path without taking locks.
func readOnlyDSN(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: "mode=ro&nolock=1"}
	return u.String()
}

func probe(ctx context.Context, db *sql.DB) error {
	var one int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM items LIMIT 1").Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

// copyDatabase copies the database and its write-ahead log, if any, to a
// temporary location and returns the copy's path.
func copyDatabase(path string) (string, error) {
	tmp, err := os.CreateTemp("", "localknowledge-zotero-*.sqlite")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := copyFile(path, tmpPath); err != nil {
		removeCopy(tmpPath)
		return "", err
	}
	if _, err := os.Stat(path + "-wal"); err == nil {
		if err := copyFile(path+"-wal", tmpPath+"-wal"); err != nil {
			removeCopy(tmpPath)
			return "", err
		}
	}
	return tmpPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func removeCopy(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cannot remove temporary database %s: %v", p, err)
		}
	}
}

// Path returns the path of the original database.
func (r *Reader) Path() string {
	return r.path
}

// UsingCopy reports whether the reader fell back to a temporary copy.
func (r *Reader) UsingCopy() bool {
	return r.tempPath != ""
}

// Close closes the database and removes any temporary copy.
func (r *Reader) Close() error {
	err := r.db.Close()
	if r.tempPath != "" {
		removeCopy(r.tempPath)
		r.tempPath = ""
	}
	return err
}

// Items returns every regular item keyed by item key.
func (r *Reader) Items(ctx context.Context) (map[string]domain.CanonicalMetadata, error) {
	items, err := r.load(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.CanonicalMetadata, len(items))
	for _, it := range items {
		out[it.ItemKey] = *it
	}
	return out, nil
}

// ItemByAttachmentKey returns the parent item of the attachment stored under key.
func (r *Reader) ItemByAttachmentKey(ctx context.Context, key string) (*domain.CanonicalMetadata, error) {
	var parentID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT ia.parentItemID
		FROM itemAttachments ia
		JOIN items i ON ia.itemID = i.itemID
		WHERE i.key = ?
	`, key).Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !parentID.Valid) {
		return nil, fmt.Errorf("attachment %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up attachment %s: %w", key, err)
	}

	items, err := r.load(ctx, parentID.Int64)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		return it, nil
	}
	return nil, fmt.Errorf("parent of attachment %s: %w", key, domain.ErrNotFound)
}

// load reads regular items, restricted to one item when itemID is non-zero.
func (r *Reader) load(ctx context.Context, itemID int64) (map[int64]*domain.CanonicalMetadata, error) {
	filter, args := "", []any{}
	if itemID != 0 {
		filter, args = " AND i.itemID = ?", []any{itemID}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.itemID, i.key, it.typeName
		FROM items i
		JOIN itemTypes it ON i.itemTypeID = it.itemTypeID
		WHERE it.typeName NOT IN ('attachment', 'note', 'annotation')
		AND i.itemID NOT IN (SELECT itemID FROM deletedItems)`+filter, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	items := make(map[int64]*domain.CanonicalMetadata)
	for rows.Next() {
		var id int64
		m := &domain.CanonicalMetadata{Authors: []string{}, Tags: []string{}, Notes: []string{}, Attachments: []string{}}
		if err := rows.Scan(&id, &m.ItemKey, &m.ItemType); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items[id] = m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	if err := r.loadFields(ctx, items, itemID); err != nil {
		return nil, err
	}
	if err := r.loadCreators(ctx, items, itemID); err != nil {
		return nil, err
	}
	if err := r.loadTags(ctx, items, itemID); err != nil {
		return nil, err
	}
	if err := r.loadNotes(ctx, items, itemID); err != nil {
		return nil, err
	}
	if err := r.loadAttachments(ctx, items, itemID); err != nil {
		return nil, err
	}

	for _, m := range items {
		m.Year = domain.ExtractYear(m.Date)
	}
	return items, nil
}

// each runs query and calls fn for every row whose first column is a loaded item.
func (r *Reader) each(ctx context.Context, items map[int64]*domain.CanonicalMetadata,
	query string, args []any, fn func(m *domain.CanonicalMetadata, vals []sql.NullString)) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		var id int64
		vals := make([]sql.NullString, len(cols)-1)
		dest := make([]any, len(cols))
		dest[0] = &id
		for i := range vals {
			dest[i+1] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		if m, ok := items[id]; ok {
			fn(m, vals)
		}
	}
	return rows.Err()
}

func scope(column string, itemID int64) (string, []any) {
	if itemID == 0 {
		return "", nil
	}
	return " AND " + column + " = ?", []any{itemID}
}

func (r *Reader) loadFields(ctx context.Context, items map[int64]*domain.CanonicalMetadata, itemID int64) error {
	filter, args := scope("id.itemID", itemID)
	err := r.each(ctx, items, `
		SELECT id.itemID, f.fieldName, iv.value
		FROM itemData id
		JOIN itemDataValues iv ON id.valueID = iv.valueID
		JOIN fields f ON id.fieldID = f.fieldID
		WHERE 1 = 1`+filter, args, func(m *domain.CanonicalMetadata, v []sql.NullString) {
		applyField(m, v[0].String, v[1].String)
	})
	if err != nil {
		return fmt.Errorf("loading fields: %w", err)
	}
	return nil
}

// applyField maps one database field onto the canonical record.
func applyField(m *domain.CanonicalMetadata, name, value string) {
	switch name {
	case "title":
		m.Title = value
	case "date":
		m.Date = value
	case "DOI":
		m.DOI = value
	case "url":
		m.URL = value
	case "abstractNote":
		m.Abstract = value
	case "publicationTitle":
		m.Journal = value
	case "volume":
		m.Volume = value
	case "issue":
		m.Issue = value
	case "pages":
		m.Pages = value
	case "ISBN":
		m.ISBN = value
	case "ISSN":
		m.ISSN = value
	}
}

func (r *Reader) loadCreators(ctx context.Context, items map[int64]*domain.CanonicalMetadata, itemID int64) error {
	filter, args := scope("ic.itemID", itemID)
	err := r.each(ctx, items, `
		SELECT ic.itemID, c.firstName, c.lastName
		FROM itemCreators ic
		JOIN creators c ON ic.creatorID = c.creatorID
		WHERE 1 = 1`+filter+`
		ORDER BY ic.itemID, ic.orderIndex`, args, func(m *domain.CanonicalMetadata, v []sql.NullString) {
		if name := creatorName(v[0].String, v[1].String); name != "" {
			m.Authors = append(m.Authors, name)
		}
	})
	if err != nil {
		return fmt.Errorf("loading creators: %w", err)
	}
	return nil
}

// creatorName joins first and last name, or returns whichever is present.
func creatorName(first, last string) string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if first != "" && last != "" {
		return first + " " + last
	}
	if last != "" {
		return last
	}
	return first
}

func (r *Reader) loadTags(ctx context.Context, items map[int64]*domain.CanonicalMetadata, itemID int64) error {
	filter, args := scope("it.itemID", itemID)
	err := r.each(ctx, items, `
		SELECT it.itemID, t.name
		FROM itemTags it
		JOIN tags t ON it.tagID = t.tagID
		WHERE 1 = 1`+filter, args, func(m *domain.CanonicalMetadata, v []sql.NullString) {
		if v[0].String != "" {
			m.Tags = append(m.Tags, v[0].String)
		}
	})
	if err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}
	return nil
}

func (r *Reader) loadNotes(ctx context.Context, items map[int64]*domain.CanonicalMetadata, itemID int64) error {
	filter, args := scope("n.parentItemID", itemID)
	err := r.each(ctx, items, `
		SELECT n.parentItemID, n.note
		FROM itemNotes n
		JOIN items i ON n.itemID = i.itemID
		WHERE n.parentItemID IS NOT NULL
		AND i.itemID NOT IN (SELECT itemID FROM deletedItems)`+filter+`
		ORDER BY n.parentItemID, n.itemID`, args, func(m *domain.CanonicalMetadata, v []sql.NullString) {
		if note := StripMarkup(v[0].String); note != "" {
			m.Notes = append(m.Notes, note)
		}
	})
	if err != nil {
		return fmt.Errorf("loading notes: %w", err)
	}
	return nil
}

// StripMarkup removes tag spans from a note and trims the result.
func StripMarkup(note string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(note, ""))
}

func (r *Reader) loadAttachments(ctx context.Context, items map[int64]*domain.CanonicalMetadata, itemID int64) error {
	filter, args := scope("ia.parentItemID", itemID)
	err := r.each(ctx, items, `
		SELECT ia.parentItemID, ia.path, i.key
		FROM itemAttachments ia
		JOIN items i ON ia.itemID = i.itemID
		WHERE ia.parentItemID IS NOT NULL
		AND i.itemID NOT IN (SELECT itemID FROM deletedItems)`+filter+`
		ORDER BY ia.parentItemID, ia.itemID`, args, func(m *domain.CanonicalMetadata, v []sql.NullString) {
		if a, ok := attachmentRef(v[0].String, v[1].String); ok {
			m.Attachments = append(m.Attachments, a)
		}
	})
	if err != nil {
		return fmt.Errorf("loading attachments: %w", err)
	}
	return nil
}

// attachmentRef formats a stored attachment as "<key>/<filename>". Linked
// files and URLs are not in storage and are skipped.
func attachmentRef(path, key string) (string, bool) {
	if !strings.HasPrefix(path, storagePrefix) {
		return "", false
	}
	return key + "/" + strings.TrimPrefix(path, storagePrefix), true
}
