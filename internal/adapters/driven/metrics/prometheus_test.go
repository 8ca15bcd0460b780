package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.DocumentIndexed("indexed")
	r.DocumentIndexed("indexed")
	r.DocumentIndexed("failed")
	r.ChunksPersisted(12)
	r.ChunksPersisted(0)
	r.IndexRun(3 * time.Second)
	r.Query("retrieve", 4, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.documents.WithLabelValues("indexed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.documents.WithLabelValues("failed")))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.chunks))

	count, err := testutil.GatherAndCount(reg, "localknowledge_query_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
}
