package domain

import (
	"sort"
	"time"
)

// IndexedFileRecord is the change-detection entry for one identity key.
type IndexedFileRecord struct {
	Hash      string `json:"hash"`
	IndexedAt string `json:"indexed_at"`
	Title     string `json:"title"`
	Authors   string `json:"authors"`
	Year      string `json:"year"`
	Pages     int    `json:"pages"`
}

// IndexState is the persisted change-detection cache.
type IndexState struct {
	IndexedFiles map[string]IndexedFileRecord `json:"indexed_files"`
	LastIndexed  string                       `json:"last_indexed,omitempty"`
}

// NewIndexState returns an empty state.
func NewIndexState() *IndexState {
	return &IndexState{IndexedFiles: make(map[string]IndexedFileRecord)}
}

// IndexPhase is a step of the indexing state machine.
type IndexPhase string

// Indexing phases. A run moves IDLE -> SCANNING, then each document is either
// SKIPPED or goes EXTRACTING -> EMBEDDING_QUEUED, and the run finishes with
// PERSISTING -> DONE.
const (
	PhaseIdle            IndexPhase = "IDLE"
	PhaseScanning        IndexPhase = "SCANNING"
	PhaseSkipped         IndexPhase = "SKIPPED"
	PhaseExtracting      IndexPhase = "EXTRACTING"
	PhaseEmbeddingQueued IndexPhase = "EMBEDDING_QUEUED"
	PhasePersisting      IndexPhase = "PERSISTING"
	PhaseDone            IndexPhase = "DONE"
)

// IndexProgress is reported to an optional observer as a run advances.
type IndexProgress struct {
	Phase IndexPhase

	// Key and Filename identify the document for per-document phases.
	Key      string
	Filename string

	// Current and Total count documents in the scan.
	Current int
	Total   int
}

// ItemResult is the outcome of indexing one document.
type ItemResult struct {
	Key      string
	Filename string
	Title    string
	Pages    int
	Chunks   int
	Err      error
}

// OK reports whether the document was extracted successfully.
func (r ItemResult) OK() bool {
	return r.Err == nil
}

// IndexReport aggregates the results of one indexing run.
type IndexReport struct {
	// Indexed is the number of documents newly indexed in this run.
	Indexed int

	// Skipped counts documents whose fingerprint was unchanged.
	Skipped int

	// Chunks is the number of chunks persisted.
	Chunks int

	Succeeded []ItemResult
	Failed    []ItemResult

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took.
func (r IndexReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// LibraryStats summarises the indexed library.
type LibraryStats struct {
	TotalPapers int
	TotalPages  int
	TotalChunks int
	LastIndexed string
	ByYear      map[string]int
}

// PaperSummary is one indexed document as listed to users.
type PaperSummary struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Year    string `json:"year"`
	Pages   int    `json:"pages"`
}

// UnknownYear labels papers without a year in listings.
const UnknownYear = "Unknown"

// ComputeStats derives library statistics from the change-detection state.
func ComputeStats(state *IndexState) LibraryStats {
	stats := LibraryStats{ByYear: make(map[string]int)}
	if state == nil {
		return stats
	}
	stats.LastIndexed = state.LastIndexed
	for _, rec := range state.IndexedFiles {
		stats.TotalPapers++
		stats.TotalPages += rec.Pages
		year := rec.Year
		if year == "" {
			year = UnknownYear
		}
		stats.ByYear[year]++
	}
	return stats
}

// Papers lists indexed documents sorted by year then title, newest first.
func Papers(state *IndexState) []PaperSummary {
	if state == nil {
		return nil
	}
	papers := make([]PaperSummary, 0, len(state.IndexedFiles))
	for key, rec := range state.IndexedFiles {
		papers = append(papers, PaperSummary{
			Key:     key,
			Title:   rec.Title,
			Authors: rec.Authors,
			Year:    rec.Year,
			Pages:   rec.Pages,
		})
	}
	sort.Slice(papers, func(i, j int) bool {
		if papers[i].Year != papers[j].Year {
			return papers[i].Year > papers[j].Year
		}
		return papers[i].Title > papers[j].Title
	})
	return papers
}

// SortedYears returns the histogram keys newest first, Unknown last.
func SortedYears(byYear map[string]int) []string {
	years := make([]string, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool {
		if years[i] == UnknownYear {
			return false
		}
		if years[j] == UnknownYear {
			return true
		}
		return years[i] > years[j]
	})
	return years
}
