package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

// listTitleLength bounds titles in the paper listing.
const listTitleLength = 60

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed papers by year",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(listCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	stats, err := s.Library().Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading index state: %w", err)
	}

	lastIndexed := stats.LastIndexed
	if lastIndexed == "" {
		lastIndexed = "never"
	}

	cmd.Println("Index statistics:")
	cmd.Printf("  Papers:       %d\n", stats.TotalPapers)
	cmd.Printf("  Pages:        %d\n", stats.TotalPages)
	cmd.Printf("  Chunks:       %d\n", stats.TotalChunks)
	cmd.Printf("  Last indexed: %s\n", lastIndexed)

	if len(stats.ByYear) > 0 {
		cmd.Println()
		cmd.Println("  By year:")
		for _, year := range domain.SortedYears(stats.ByYear) {
			cmd.Printf("    %s: %d\n", year, stats.ByYear[year])
		}
	}
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	papers, err := s.Library().Papers(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading index state: %w", err)
	}

	cmd.Printf("Indexed %d papers:\n", len(papers))

	currentYear := ""
	for _, p := range papers {
		year := p.Year
		if year == "" {
			year = domain.UnknownYear
		}
		if year != currentYear {
			currentYear = year
			cmd.Printf("\n── %s ──\n", year)
		}
		authors := p.Authors
		if authors == "" {
			authors = "Unknown"
		}
		cmd.Printf("  • %s - %s\n", authors, domain.Truncate(p.Title, listTitleLength))
	}
	return nil
}
