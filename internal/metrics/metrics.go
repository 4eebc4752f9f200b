package metrics

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corpus_records_loaded_total",
		Help: "Total number of records loaded, by input format",
	}, []string{"format"})

	RecordsFormattedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corpus_records_formatted_total",
		Help: "Total number of records with the end-of-sequence marker appended",
	})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corpus_validation_errors_total",
		Help: "Total number of validation errors",
	}, []string{"operation", "error_type"})

	SplitRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "corpus_split_records",
		Help: "Number of records in each subset of the last split",
	}, []string{"subset"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corpus_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})

	HeapAllocated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "corpus_heap_allocated_bytes",
		Help: "Go heap bytes allocated after the last stage",
	})

	OverlongRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "corpus_overlong_records",
		Help: "Training records longer than max_seq_length in the last run",
	})

	FlightRowsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corpus_flight_rows_sent_total",
		Help: "Rows published to Arrow Flight",
	})
)

func RecordLoaded(format string, n int) {
	RecordsLoadedTotal.WithLabelValues(format).Add(float64(n))
}

func RecordFormatted(n int) {
	RecordsFormattedTotal.Add(float64(n))
}

func RecordValidationError(operation, errorType string) {
	ValidationErrors.WithLabelValues(operation, errorType).Inc()
}

func RecordSplit(train, heldOut int) {
	SplitRecords.WithLabelValues("train").Set(float64(train))
	SplitRecords.WithLabelValues("held_out").Set(float64(heldOut))
}

func RecordStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordOverlong(n int) {
	OverlongRecords.Set(float64(n))
}

func RecordFlightRows(n int64) {
	FlightRowsSent.Add(float64(n))
}

// SampleHeap records and returns the current Go heap allocation.
func SampleHeap() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	HeapAllocated.Set(float64(ms.HeapAlloc))
	return ms.HeapAlloc
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
