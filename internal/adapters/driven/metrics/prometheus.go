// Package metrics records operational counters with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// Namespace prefixes every metric name.
const Namespace = "localknowledge"

// Ensure Recorder implements the interface.
var _ driven.Metrics = (*Recorder)(nil)

// Recorder implements driven.Metrics on a Prometheus registry.
type Recorder struct {
	documents *prometheus.CounterVec
	chunks    prometheus.Counter
	runs      prometheus.Histogram
	queries   *prometheus.HistogramVec
	hits      *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "index",
			Name:      "documents_total",
			Help:      "Documents processed by indexing runs, by outcome.",
		}, []string{"outcome"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "index",
			Name:      "chunks_persisted_total",
			Help:      "Chunks written to the vector store.",
		}),
		runs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "index",
			Name:      "run_duration_seconds",
			Help:      "Duration of completed indexing runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		queries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Duration of retrieval and synthesis requests, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		hits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "query",
			Name:      "hits",
			Help:      "Citations returned per request, by kind.",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{r.documents, r.chunks, r.runs, r.queries, r.hits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DocumentIndexed implements driven.Metrics.
func (r *Recorder) DocumentIndexed(outcome string) {
	r.documents.WithLabelValues(outcome).Inc()
}

// ChunksPersisted implements driven.Metrics.
func (r *Recorder) ChunksPersisted(n int) {
	if n > 0 {
		r.chunks.Add(float64(n))
	}
}

// IndexRun implements driven.Metrics.
func (r *Recorder) IndexRun(d time.Duration) {
	r.runs.Observe(d.Seconds())
}

// Query implements driven.Metrics.
func (r *Recorder) Query(kind string, hits int, d time.Duration) {
	r.queries.WithLabelValues(kind).Observe(d.Seconds())
	r.hits.WithLabelValues(kind).Observe(float64(hits))
}
