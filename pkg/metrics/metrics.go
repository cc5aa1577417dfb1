// Package metrics provides performance tracking and observability for
// pvstream using Prometheus metrics. It offers collectors for the
// pipeline stages: line reading, parsing, filtering, chunk encoding and
// artifact writing.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for pipeline stages
//   - Throughput and latency tracking utilities
//   - Thread-safe metric recording
//   - Automatic metric registration
//
// # Basic Usage
//
//	// Record parsed records
//	metrics.RecordsParsed.WithLabelValues("file", "success").Inc()
//
//	// Track stage latency
//	timer := metrics.NewTimer("encode_chunk")
//	encodeChunk(records)
//	duration := timer.Stop()
//	metrics.StageLatency.WithLabelValues("encode", "file").Observe(float64(duration.Nanoseconds()))
//
//	// Track throughput
//	tracker := metrics.NewThroughputTracker("file", "parquet")
//	for record := range records {
//	    process(record)
//	    tracker.Increment(1)
//	}
//	throughput := tracker.GetAndReset()
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total lines read)
// Gauge: Values that can go up or down (e.g., current throughput)
// Histogram: Distribution of values (e.g., latency percentiles)
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinesRead tracks raw lines pulled from dump sources.
	// Labels: source (file/http)
	LinesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvstream_lines_read_total",
			Help: "Total number of raw lines read from dump sources",
		},
		[]string{"source"},
	)

	// RecordsParsed tracks parse outcomes.
	// Labels: source (file/http), status (success/failure)
	RecordsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvstream_records_parsed_total",
			Help: "Total number of lines parsed into records",
		},
		[]string{"source", "status"},
	)

	// ParseFailures tracks failures by error category.
	// Labels: source, kind (missing_field/invalid_field/read)
	ParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvstream_parse_failures_total",
			Help: "Total number of per-line failures by kind",
		},
		[]string{"source", "kind"},
	)

	// FilteredOut tracks records rejected by each filter stage.
	// Labels: source, stage (pre/post)
	FilteredOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvstream_filtered_out_total",
			Help: "Total number of lines or records rejected by filtering",
		},
		[]string{"source", "stage"},
	)

	// ChunksEmitted tracks finalized columnar chunks.
	// Labels: source
	ChunksEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvstream_chunks_emitted_total",
			Help: "Total number of columnar chunks emitted",
		},
		[]string{"source"},
	)

	// ChunkRows tracks the row-count distribution of emitted chunks.
	ChunkRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "pvstream_chunk_rows",
			Help: "Rows per emitted chunk",
			Buckets: []float64{
				1024,
				8192,
				32768,
				65536,
				122880,
			},
		},
	)

	// ArtifactBytes tracks bytes written to output artifacts.
	// Labels: format (parquet/arrow/avro/csv/jsonl)
	ArtifactBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvstream_artifact_bytes_total",
			Help: "Total bytes written to output artifacts",
		},
		[]string{"format"},
	)

	// StageLatency tracks the distribution of stage latencies in nanoseconds.
	// The histogram buckets are optimized for sub-millisecond tracking.
	// Labels: stage (read/parse/encode/write/upload), source
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pvstream_stage_latency_nanoseconds",
			Help: "Stage latency in nanoseconds",
			Buckets: []float64{
				100,    // 100ns - Ultra-low latency operations
				1000,   // 1μs - Memory operations
				10000,  // 10μs - Fast I/O operations
				100000, // 100μs - Network operations
				1e6,    // 1ms - Standard processing
				1e7,    // 10ms - Complex transformations
				1e8,    // 100ms - Batch operations
				1e9,    // 1s - Large batch processing
			},
		},
		[]string{"stage", "source"},
	)

	// Throughput tracks records per second.
	// Labels: source, format
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pvstream_throughput_records_per_second",
			Help: "Current throughput in records per second",
		},
		[]string{"source", "format"},
	)

	// UploadBytes tracks artifact bytes pushed to object storage.
	// Labels: provider (s3/gcs)
	UploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvstream_upload_bytes_total",
			Help: "Total artifact bytes uploaded to object storage",
		},
		[]string{"provider"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("chunk_encoding")
//	encodeChunk(records)
//	duration := timer.Stop()
//	logger.Info("chunk encoded", zap.Duration("duration", duration))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (records per second) over time windows.
// It automatically calculates and reports throughput metrics when queried.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Records processed since last reset
	lastReset time.Time // Time of last reset
	source    string    // Source kind label
	format    string    // Output format label
}

// NewThroughputTracker creates a new throughput tracker for a run.
// The source and format parameters are used as metric labels.
//
// Example:
//
//	tracker := metrics.NewThroughputTracker("http", "parquet")
//	for rec := range records {
//	    process(rec)
//	    tracker.Increment(1)
//	}
//	throughput := tracker.GetAndReset()
func NewThroughputTracker(source, format string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		source:    source,
		format:    format,
	}
}

// Increment adds n to the record count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (records/second),
// updates the Prometheus metric, resets the counter, and returns
// the calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	// Update Prometheus metric
	Throughput.WithLabelValues(t.source, t.format).Set(throughput)

	return throughput
}

// LatencyTracker provides percentile tracking over a bounded window
type LatencyTracker struct {
	mu      sync.Mutex
	values  []time.Duration
	maxSize int
}

// NewLatencyTracker creates a new latency tracker
func NewLatencyTracker(maxSize int) *LatencyTracker {
	return &LatencyTracker{
		values:  make([]time.Duration, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record records a latency value
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) >= l.maxSize {
		// Remove oldest
		l.values = l.values[1:]
	}
	l.values = append(l.values, d)
}

// GetPercentile returns the percentile value (0-100)
func (l *LatencyTracker) GetPercentile(p float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) == 0 {
		return 0
	}

	index := int(float64(len(l.values)) * p / 100)
	if index >= len(l.values) {
		index = len(l.values) - 1
	}

	return l.values[index]
}
