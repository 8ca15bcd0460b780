package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	zoteroconn "github.com/SWHsz/LocalKnowledge/internal/connectors/zotero"
	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// watchDebounce delays re-indexing until storage changes settle.
var watchDebounce = 2 * time.Second

var (
	indexForce bool
	indexWatch bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the PDFs in the Zotero library",
	Long: `Scans the Zotero storage directory, extracts page text from every PDF,
and stores embedded chunks in the vector store.

Documents whose content is unchanged since the last run are skipped.
Use --force to re-index everything, or --watch to keep running and
re-index whenever files under storage change.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "re-index every document")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "re-index when storage changes")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	ctx := cmd.Context()
	indexer, err := s.Indexer(ctx)
	if err != nil {
		return fmt.Errorf("loading backends: %w", err)
	}

	root := s.Config().Zotero.StoragePath()
	cmd.Printf("Scanning Zotero storage: %s\n", root)

	if err := indexOnce(ctx, cmd, indexer, indexForce); err != nil {
		return err
	}
	if !indexWatch {
		return nil
	}
	return watchAndIndex(ctx, cmd, root, indexer)
}

func indexOnce(ctx context.Context, cmd *cobra.Command, indexer driving.IndexService, force bool) error {
	report, err := indexer.Index(ctx, driving.IndexOptions{
		Force:    force,
		Progress: progressPrinter(cmd),
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	printReport(cmd, report)
	return nil
}

// progressPrinter reports the phases an operator cares about.
func progressPrinter(cmd *cobra.Command) func(domain.IndexProgress) {
	return func(p domain.IndexProgress) {
		switch p.Phase {
		case domain.PhasePersisting:
			cmd.Printf("Building vector index (%d documents)...\n", p.Total)
		case domain.PhaseExtracting:
			logger.Debug("[%d/%d] %s", p.Current, p.Total, p.Filename)
		case domain.PhaseIdle, domain.PhaseScanning, domain.PhaseSkipped,
			domain.PhaseEmbeddingQueued, domain.PhaseDone:
		}
	}
}

func printReport(cmd *cobra.Command, report *domain.IndexReport) {
	for _, r := range report.Succeeded {
		cmd.Printf("  ✓ %s (%d pages, %d chunks)\n", domain.Truncate(r.Title, 50), r.Pages, r.Chunks)
	}
	for _, r := range report.Failed {
		cmd.Printf("  ✗ %s: %v\n", r.Filename, r.Err)
	}

	if report.Indexed == 0 && len(report.Failed) == 0 {
		cmd.Printf("Index is up to date (%d unchanged).\n", report.Skipped)
		return
	}
	cmd.Printf("Done. Indexed %d papers (%d chunks), skipped %d, failed %d in %s.\n",
		report.Indexed, report.Chunks, report.Skipped, len(report.Failed),
		report.Duration().Round(time.Millisecond))
}

// watchAndIndex re-indexes after each burst of storage changes until ctx
// is cancelled.
func watchAndIndex(ctx context.Context, cmd *cobra.Command, root string, indexer driving.IndexService) error {
	watcher := zoteroconn.NewWatcher(root)
	defer watcher.Close() //nolint:errcheck

	changes, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	cmd.Printf("Watching %s for changes (ctrl+c to stop)...\n", root)

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			logger.Debug("%s %s/%s", change.Type, change.Item.Key, change.Item.Filename)
			timer.Reset(watchDebounce)
		case <-timer.C:
			err := indexOnce(ctx, cmd, indexer, false)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				logger.Error("%v", err)
			}
		}
	}
}
