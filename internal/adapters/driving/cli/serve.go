package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/SWHsz/LocalKnowledge/internal/adapters/driven/metrics"
	"github.com/SWHsz/LocalKnowledge/internal/adapters/driving/web"
	"github.com/SWHsz/LocalKnowledge/internal/app"
	"github.com/SWHsz/LocalKnowledge/internal/core/services"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

var (
	serveAddr     string
	serveSchedule string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	Long: `Starts a JSON API for asking questions about the library:

  POST /api/query    {"question": "..."}
  POST /api/search   {"query": "...", "top_k": 5}
  POST /api/find     {"keyword": "..."}
  GET  /api/stats
  GET  /api/papers?year=2020
  POST /api/index    {"force": false}
  GET  /metrics
  GET  /healthz

With --schedule (or server.reindex_schedule), the library is re-indexed
incrementally on a cron schedule, for example "0 * * * *" for hourly.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "cron expression for re-indexing")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	s, err := openSession(cmd, app.WithMetrics(recorder))
	if err != nil {
		return err
	}
	defer closeSession(s)

	ctx := cmd.Context()
	cfg := s.Config()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	spec := serveSchedule
	if spec == "" {
		spec = cfg.Server.ReindexSchedule
	}

	if spec != "" {
		stop, err := startScheduler(ctx, s, spec)
		if err != nil {
			return err
		}
		defer stop()
		cmd.PrintErrf("Re-indexing on schedule %q\n", spec)
	}

	server, err := web.NewServer(&web.Ports{
		Query:   s,
		Library: s.Library(),
		Index:   s,
	}, web.WithGatherer(reg), web.WithBaseContext(ctx))
	if err != nil {
		return err
	}

	cmd.PrintErrf("Chat API listening on http://%s\n", addr)
	return server.Run(ctx, addr)
}

// startScheduler parses spec and runs scheduled indexing in the background.
// The returned function stops it.
func startScheduler(ctx context.Context, s *app.Session, spec string) (func(), error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	indexer, err := s.Indexer(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading backends: %w", err)
	}

	scheduler := services.NewScheduler(schedule, indexer)
	go func() {
		if err := scheduler.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler stopped: %v", err)
		}
	}()

	return func() {
		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler stop error: %v", err)
		}
	}, nil
}
