package domain

import (
	"fmt"
	"math"
	"strings"
)

// EmptyResponse is the answer text when no context was retrieved.
const EmptyResponse = "Empty Response"

// Citation is a retrieved chunk with its similarity score.
type Citation struct {
	// Chunk is the specific chunk that matched.
	Chunk Chunk

	// Score is the similarity to the query; higher is closer.
	Score float64
}

// Excerpt returns the chunk text truncated to n runes for display.
func (c Citation) Excerpt(n int) string {
	return Truncate(c.Chunk.Text, n)
}

// Answer is a synthesised response with the citations it was built from.
type Answer struct {
	Query     string
	Text      string
	Citations []Citation
}

// Markdown renders the answer followed by a numbered reference list.
func (a Answer) Markdown() string {
	var b strings.Builder
	b.WriteString(a.Text)
	b.WriteString("\n\n---\n### References\n")
	if len(a.Citations) == 0 {
		b.WriteString("\nNo sources retrieved.\n")
		return b.String()
	}
	for i, c := range a.Citations {
		m := c.Chunk.Meta
		fmt.Fprintf(&b, "\n**[%d]** %s\n", i+1, m.Title)
		fmt.Fprintf(&b, "- Authors: %s (%s)\n", m.Authors, m.Year)
		fmt.Fprintf(&b, "- Page: %d | Relevance: %.3f\n", m.Page, RoundScore(c.Score))
		fmt.Fprintf(&b, "- > %s\n", c.Excerpt(200))
	}
	return b.String()
}

// PaperGroup collects the excerpts of one paper matched by a title keyword.
type PaperGroup struct {
	Title      string
	Authors    string
	Year       string
	TotalPages int
	Excerpts   []Excerpt
}

// Excerpt is one page-anchored passage within a PaperGroup.
type Excerpt struct {
	Page  int
	Text  string
	Score float64
}

// RoundScore rounds a score to three decimals for display.
func RoundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
