package driven

import "time"

// Metrics records operational counters. A nil Metrics is never passed to
// services; use NopMetrics when metrics are disabled.
type Metrics interface {
	// DocumentIndexed records one document outcome ("indexed", "skipped", "failed").
	DocumentIndexed(outcome string)

	// ChunksPersisted records chunks written in one run.
	ChunksPersisted(n int)

	// IndexRun records a completed indexing run.
	IndexRun(d time.Duration)

	// Query records one retrieval with its hit count.
	Query(kind string, hits int, d time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

// DocumentIndexed implements Metrics.
func (NopMetrics) DocumentIndexed(string) {}

// ChunksPersisted implements Metrics.
func (NopMetrics) ChunksPersisted(int) {}

// IndexRun implements Metrics.
func (NopMetrics) IndexRun(time.Duration) {}

// Query implements Metrics.
func (NopMetrics) Query(string, int, time.Duration) {}
