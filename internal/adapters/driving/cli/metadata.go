package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

const (
	sampleTitleLength    = 60
	sampleAbstractLength = 100
	sampleAuthors        = 3
)

var (
	metadataForce  bool
	metadataDB     string
	metadataSample int
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Extract bibliographic metadata from the Zotero database",
	Long: `Reads item metadata from zotero.sqlite, caches it, and reports how
complete it is. The database is copied first when Zotero holds a lock on it.`,
	Args: cobra.NoArgs,
	RunE: runMetadata,
}

func init() {
	metadataCmd.Flags().BoolVarP(&metadataForce, "force", "f", false, "ignore the metadata cache")
	metadataCmd.Flags().StringVar(&metadataDB, "db", "", "path to zotero.sqlite")
	metadataCmd.Flags().IntVarP(&metadataSample, "sample", "s", 3, "number of sample items to show")
	rootCmd.AddCommand(metadataCmd)
}

func runMetadata(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	dbPath, err := s.DatabasePath(metadataDB)
	if err != nil {
		cmd.PrintErrln("Zotero database not found. Set it in your config:")
		cmd.PrintErrln("  zotero:")
		cmd.PrintErrln("    database: /path/to/Zotero/zotero.sqlite")
		return err
	}
	cmd.Printf("Reading Zotero database: %s\n", dbPath)

	items, err := s.Metadata().Extract(cmd.Context(), driving.ExtractOptions{
		Force:    metadataForce,
		Database: metadataDB,
	})
	if err != nil && !errors.Is(err, domain.ErrLibraryNotFound) {
		return fmt.Errorf("extracting metadata: %w", err)
	}

	cmd.Printf("Extracted metadata for %d items\n", len(items))
	printMetadataSummary(cmd, domain.SummariseMetadata(items))
	printSamples(cmd, items, metadataSample)
	return nil
}

func printMetadataSummary(cmd *cobra.Command, summary domain.MetadataSummary) {
	if summary.Total == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Field", "Count", "Percent")
	for _, row := range []struct {
		name string
		n    int
	}{
		{"Abstract", summary.WithAbstract},
		{"DOI", summary.WithDOI},
		{"Journal", summary.WithJournal},
		{"Tags", summary.WithTags},
		{"Notes", summary.WithNotes},
	} {
		t.Row(row.name, strconv.Itoa(row.n), fmt.Sprintf("%.1f%%", summary.Percent(row.n)))
	}

	cmd.Println()
	cmd.Println(headingStyle.Render("Metadata completeness"))
	cmd.Println(t.String())

	types := make([]string, 0, len(summary.ByType))
	for name := range summary.ByType {
		types = append(types, name)
	}
	sort.Slice(types, func(i, j int) bool {
		if summary.ByType[types[i]] != summary.ByType[types[j]] {
			return summary.ByType[types[i]] > summary.ByType[types[j]]
		}
		return types[i] < types[j]
	})

	cmd.Println()
	cmd.Println(headingStyle.Render("Item types"))
	for _, name := range types {
		cmd.Printf("  %s: %d\n", name, summary.ByType[name])
	}
}

// printSamples shows the first n items by key.
func printSamples(cmd *cobra.Command, items map[string]domain.CanonicalMetadata, n int) {
	if n <= 0 || len(items) == 0 {
		return
	}

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if n > len(keys) {
		n = len(keys)
	}

	cmd.Println()
	cmd.Println(headingStyle.Render(fmt.Sprintf("Sample items (first %d)", n)))
	for _, key := range keys[:n] {
		m := items[key]
		cmd.Printf("\n── %s ──\n", key)
		cmd.Printf("  Title:    %s\n", domain.Truncate(m.Title, sampleTitleLength))
		cmd.Printf("  Authors:  %s\n", sampleAuthorList(m.Authors))
		cmd.Printf("  Year:     %s\n", m.Year)
		if m.Journal != "" {
			cmd.Printf("  Journal:  %s\n", m.Journal)
		}
		if m.DOI != "" {
			cmd.Printf("  DOI:      %s\n", m.DOI)
		}
		if m.Abstract != "" {
			cmd.Printf("  Abstract: %s\n", domain.Truncate(m.Abstract, sampleAbstractLength))
		}
		if len(m.Tags) > 0 {
			cmd.Printf("  Tags:     %s\n", strings.Join(m.Tags, ", "))
		}
		if len(m.Notes) > 0 {
			cmd.Printf("  Notes:    %d\n", len(m.Notes))
		}
	}
}

func sampleAuthorList(authors []string) string {
	if len(authors) <= sampleAuthors {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:sampleAuthors], ", ") + "..."
}
