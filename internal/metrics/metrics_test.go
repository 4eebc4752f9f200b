package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLoadedAccumulates(t *testing.T) {
	before := testutil.ToFloat64(RecordsLoadedTotal.WithLabelValues("parquet"))
	RecordLoaded("parquet", 10)
	RecordLoaded("parquet", 5)
	assert.Equal(t, before+15, testutil.ToFloat64(RecordsLoadedTotal.WithLabelValues("parquet")))
}

func TestRecordFormatted(t *testing.T) {
	before := testutil.ToFloat64(RecordsFormattedTotal)
	RecordFormatted(3)
	assert.Equal(t, before+3, testutil.ToFloat64(RecordsFormattedTotal))
}

func TestRecordSplitSetsGauges(t *testing.T) {
	RecordSplit(1, 199)
	assert.Equal(t, 1.0, testutil.ToFloat64(SplitRecords.WithLabelValues("train")))
	assert.Equal(t, 199.0, testutil.ToFloat64(SplitRecords.WithLabelValues("held_out")))

	RecordSplit(2, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(SplitRecords.WithLabelValues("train")))
}

func TestRecordValidationError(t *testing.T) {
	before := testutil.ToFloat64(ValidationErrors.WithLabelValues("format", "malformed_record"))
	RecordValidationError("format", "malformed_record")
	assert.Equal(t, before+1, testutil.ToFloat64(ValidationErrors.WithLabelValues("format", "malformed_record")))
}

func TestRecordStageObserves(t *testing.T) {
	RecordStage("split", 20*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(StageDuration, "corpus_stage_duration_seconds"), 1)
}

func TestSampleHeap(t *testing.T) {
	heap := SampleHeap()
	assert.NotZero(t, heap)
	assert.Equal(t, float64(heap), testutil.ToFloat64(HeapAllocated))
}

func TestRecordOverlongAndFlightRows(t *testing.T) {
	RecordOverlong(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(OverlongRecords))

	before := testutil.ToFloat64(FlightRowsSent)
	RecordFlightRows(12)
	assert.Equal(t, before+12, testutil.ToFloat64(FlightRowsSent))
}

func TestServeExposesMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr) }()

	RecordFormatted(1)

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, string(body), "corpus_records_formatted_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not shut down")
	}
}
