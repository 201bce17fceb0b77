package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedWorkingSet struct{ batches, rows int }

func (f fixedWorkingSet) Stats() (int, int) { return f.batches, f.rows }

func TestWorkingSetCollector(t *testing.T) {
	c := NewWorkingSetCollector(fixedWorkingSet{batches: 2, rows: 120})

	assert.Equal(t, 2, testutil.CollectAndCount(c))

	expected := `
# HELP chainscope_batches_held Number of uploaded batches held in memory
# TYPE chainscope_batches_held gauge
chainscope_batches_held 2
# HELP chainscope_rows_held Number of snapshot rows held across all batches
# TYPE chainscope_rows_held gauge
chainscope_rows_held 120
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(Queries.WithLabelValues("series", "ok"))
	RecordQuery("series", "ok", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(Queries.WithLabelValues("series", "ok")))

	before = testutil.ToFloat64(FilesProcessed.WithLabelValues("skipped"))
	RecordFile(false)
	assert.Equal(t, before+1, testutil.ToFloat64(FilesProcessed.WithLabelValues("skipped")))

	before = testutil.ToFloat64(BatchLoads.WithLabelValues("error"))
	RecordBatchLoad(time.Millisecond, 0, assert.AnError)
	assert.Equal(t, before+1, testutil.ToFloat64(BatchLoads.WithLabelValues("error")))

	before = testutil.ToFloat64(UploadsRejected.WithLabelValues("too_large"))
	RecordUploadRejected("too_large")
	assert.Equal(t, before+1, testutil.ToFloat64(UploadsRejected.WithLabelValues("too_large")))
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}
