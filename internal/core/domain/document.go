package domain

import (
	"path/filepath"
	"regexp"
	"strings"
)

// IdentityKeyLength is the fixed length of a library storage key.
const IdentityKeyLength = 8

// UnknownAuthors is the author string used when a filename cannot be parsed.
const UnknownAuthors = "Unknown"

// IsIdentityKey reports whether s is a valid storage key:
// exactly eight characters from [A-Z0-9].
func IsIdentityKey(s string) bool {
	if len(s) != IdentityKeyLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// LibraryItem is a document file found in a storage directory.
type LibraryItem struct {
	// Key is the identity key of the enclosing storage directory.
	Key string

	// Filename is the base name of the document file.
	Filename string

	// Path is the absolute path to the document file.
	Path string
}

// filenamePattern matches "Authors - 2020 - Title" with any dash variant.
var filenamePattern = regexp.MustCompile(`^(.+?)\s*[-–—]\s*(\d{4})\s*[-–—]\s*(.+)$`)

// FilenameMetadata is the metadata recoverable from a document filename.
type FilenameMetadata struct {
	Authors string
	Year    string
	Title   string
}

// ParseFilename extracts authors, year and title from a filename following
// the "Authors - Year - Title.pdf" convention. It never fails: names that do
// not follow the convention yield Unknown authors, no year, and the stem as
// title.
func ParseFilename(filename string) FilenameMetadata {
	stem := filename
	if ext := filepath.Ext(stem); strings.EqualFold(ext, ".pdf") {
		stem = strings.TrimSuffix(stem, ext)
	}

	m := filenamePattern.FindStringSubmatch(stem)
	if m == nil {
		return FilenameMetadata{Authors: UnknownAuthors, Year: "", Title: stem}
	}
	return FilenameMetadata{
		Authors: strings.TrimSpace(m[1]),
		Year:    m[2],
		Title:   strings.TrimSpace(m[3]),
	}
}

// ChunkMeta is the provenance carried by every page and chunk.
type ChunkMeta struct {
	Title       string
	Authors     string
	Year        string
	IdentityKey string

	// Source is the document's filename.
	Source string

	// FilePath is the absolute path of the document.
	FilePath string

	// Page is 1-based.
	Page int

	TotalPages int
}

// Page is the text of one non-blank page with its provenance.
type Page struct {
	Text string
	Meta ChunkMeta
}

// Chunk represents a searchable unit within a page.
// Pages are split into overlapping chunks for granular retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Text is the content of this chunk. Never empty.
	Text string

	// Position is the ordinal position within the page.
	Position int

	// Meta is the provenance copied from the page.
	Meta ChunkMeta

	// Embedding is the vector representation for semantic search.
	Embedding []float32
}
