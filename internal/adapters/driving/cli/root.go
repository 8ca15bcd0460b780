// Package cli implements the localknowledge command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	configfile "github.com/SWHsz/LocalKnowledge/internal/adapters/driven/config/file"
	"github.com/SWHsz/LocalKnowledge/internal/app"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

// openSession builds the session for a command. Tests replace it.
var openSession = defaultOpenSession

var rootCmd = &cobra.Command{
	Use:   "localknowledge",
	Short: "Search and question your Zotero library",
	Long: `LocalKnowledge indexes the PDFs in a local Zotero library and answers
questions about them with page-level citations.

Run "localknowledge index" once to build the index, then use "query",
"chat", "serve" or "mcp serve" to ask questions.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml or config.toml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with ctx, which commands use for cancellation.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func defaultOpenSession(_ *cobra.Command, opts ...app.Option) (*app.Session, error) {
	path, err := configfile.Discover(configPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("using config %s", path)

	cfg, err := configfile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return app.NewSession(cfg, opts...)
}

// closeSession closes s and logs any failure.
func closeSession(s *app.Session) {
	if err := s.Close(); err != nil {
		logger.Warn("closing session: %v", err)
	}
}
