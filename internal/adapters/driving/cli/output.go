package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// Column limits for citation tables.
const (
	refTitleLength   = 40
	refAuthorsLength = 20
	findTitleLength  = 50
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

// printAnswer writes the answer followed by its references table.
func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	cmd.Println(headingStyle.Render("Answer"))
	cmd.Println(answer.Text)

	if len(answer.Citations) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Title", "Authors", "Year", "Page", "Score")
	for i, c := range answer.Citations {
		m := c.Chunk.Meta
		year := m.Year
		if year == "" {
			year = "-"
		}
		t.Row(
			strconv.Itoa(i+1),
			domain.Truncate(m.Title, refTitleLength),
			domain.Truncate(m.Authors, refAuthorsLength),
			year,
			strconv.Itoa(m.Page),
			fmt.Sprintf("%.2f", c.Score),
		)
	}

	cmd.Println()
	cmd.Println(headingStyle.Render("References"))
	cmd.Println(t.String())
}

// printCitations writes retrieval-only results.
func printCitations(cmd *cobra.Command, citations []domain.Citation) {
	if len(citations) == 0 {
		cmd.Println("No related documents found.")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Title", "Authors", "Page", "Score")
	for _, c := range citations {
		m := c.Chunk.Meta
		t.Row(
			domain.Truncate(m.Title, findTitleLength),
			domain.Truncate(m.Authors, refAuthorsLength),
			strconv.Itoa(m.Page),
			fmt.Sprintf("%.2f", c.Score),
		)
	}
	cmd.Println(t.String())
}
