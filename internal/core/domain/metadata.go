package domain

import (
	"regexp"
	"strings"
)

// CanonicalMetadata is the bibliographic record of one library item as read
// from the library database. Missing values are empty, never absent.
type CanonicalMetadata struct {
	ItemKey  string `json:"item_key"`
	ItemType string `json:"item_type"`
	Title    string `json:"title"`

	// Authors are in source order.
	Authors []string `json:"authors"`

	Year     string `json:"year"`
	Date     string `json:"date"`
	Journal  string `json:"journal"`
	Volume   string `json:"volume"`
	Issue    string `json:"issue"`
	Pages    string `json:"pages"`
	DOI      string `json:"doi"`
	URL      string `json:"url"`
	ISBN     string `json:"isbn"`
	ISSN     string `json:"issn"`
	Abstract string `json:"abstract"`

	Tags  []string `json:"tags"`
	Notes []string `json:"notes"`

	// Attachments are "<attachmentKey>/<filename>" for files kept in storage.
	Attachments []string `json:"attachments"`
}

// AuthorString joins the authors for display.
func (m CanonicalMetadata) AuthorString() string {
	return strings.Join(m.Authors, ", ")
}

// AttachmentKeys returns the identity keys of the item's stored attachments.
func (m CanonicalMetadata) AttachmentKeys() []string {
	keys := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		key, _, ok := strings.Cut(a, "/")
		if ok && key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// ExtractYear returns the first run of four digits in a free-form date,
// or "" when there is none.
func ExtractYear(date string) string {
	return yearPattern.FindString(date)
}

// Provenance identifies where a document's metadata came from.
type Provenance int

const (
	// ProvenanceFilename is metadata parsed from the document filename.
	ProvenanceFilename Provenance = iota

	// ProvenanceDatabase is metadata read from the library database.
	ProvenanceDatabase
)

// String returns the string representation.
func (p Provenance) String() string {
	switch p {
	case ProvenanceDatabase:
		return "database"
	case ProvenanceFilename:
		return "filename"
	default:
		return "unknown"
	}
}

// DocumentMetadata is the resolved metadata used to label a document's
// chunks. Record is set only when Provenance is ProvenanceDatabase.
type DocumentMetadata struct {
	Provenance Provenance
	Title      string
	Authors    string
	Year       string
	Record     *CanonicalMetadata
}

// ResolveMetadata fuses filename-derived and database-derived metadata.
// A database record wins; any of its fields left empty is filled from the
// filename heuristic. Without a record the filename heuristic is used.
func ResolveMetadata(filename string, record *CanonicalMetadata) DocumentMetadata {
	parsed := ParseFilename(filename)
	if record == nil {
		return DocumentMetadata{
			Provenance: ProvenanceFilename,
			Title:      parsed.Title,
			Authors:    parsed.Authors,
			Year:       parsed.Year,
		}
	}

	resolved := DocumentMetadata{
		Provenance: ProvenanceDatabase,
		Title:      record.Title,
		Authors:    record.AuthorString(),
		Year:       record.Year,
		Record:     record,
	}
	if resolved.Title == "" {
		resolved.Title = parsed.Title
	}
	if resolved.Authors == "" {
		resolved.Authors = parsed.Authors
	}
	if resolved.Year == "" {
		resolved.Year = parsed.Year
	}
	return resolved
}

// MetadataSummary reports field completeness across a set of records.
type MetadataSummary struct {
	Total        int
	WithAbstract int
	WithDOI      int
	WithJournal  int
	WithTags     int
	WithNotes    int
	ByType       map[string]int
}

// SummariseMetadata computes completeness counts for the given records.
func SummariseMetadata(records map[string]CanonicalMetadata) MetadataSummary {
	s := MetadataSummary{Total: len(records), ByType: make(map[string]int)}
	for _, r := range records {
		if r.Abstract != "" {
			s.WithAbstract++
		}
		if r.DOI != "" {
			s.WithDOI++
		}
		if r.Journal != "" {
			s.WithJournal++
		}
		if len(r.Tags) > 0 {
			s.WithTags++
		}
		if len(r.Notes) > 0 {
			s.WithNotes++
		}
		itemType := r.ItemType
		if itemType == "" {
			itemType = "unknown"
		}
		s.ByType[itemType]++
	}
	return s
}

// Percent returns n as a percentage of the summary total.
func (s MetadataSummary) Percent(n int) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(s.Total)
}
