package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// Server is the HTTP chat API.
type Server struct {
	ports    *Ports
	router   *gin.Engine
	gatherer prometheus.Gatherer

	// baseCtx outlives requests so background index runs are not cut short.
	baseCtx  context.Context
	indexing atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithGatherer exposes the given registry on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithBaseContext sets the context background index runs derive from.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) {
		s.baseCtx = ctx
	}
}

// NewServer creates the HTTP API with the given ports.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports:   ports,
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery(), requestLogger())
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api")
	api.POST("/query", s.handleQuery)
	api.POST("/search", s.handleSearch)
	api.POST("/find", s.handleFind)
	api.GET("/stats", s.handleStats)
	api.GET("/papers", s.handlePapers)
	if s.ports.Index != nil {
		api.POST("/index", s.handleIndex)
	}
}

// requestLogger logs each request at debug level with its latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.L().Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Handler returns the router, for tests and for mounting.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the API on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
