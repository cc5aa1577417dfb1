// Package observability provides distributed tracing for pvstream
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// Global tracer instance
	tracer trace.Tracer

	// Initialization lock
	initOnce sync.Once
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
}

// Initialize sets up the tracing framework
func Initialize(config TracingConfig) error {
	var err error

	initOnce.Do(func() {
		err = initTracing(config)
	})

	return err
}

// GetTracer returns the global tracer
func GetTracer() trace.Tracer {
	return tracer
}

// Span represents a tracing span with batched attribute updates
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan creates a new span
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span (batched until End)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case uint64:
		attr = attribute.Int64(key, int64(v))
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetStatus sets the span status
func (s *Span) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End flushes batched attributes, records the span duration and ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}

	s.span.SetAttributes(attribute.Int64("duration_ns", time.Since(s.startTime).Nanoseconds()))
	s.span.End()
}

// StageTracer provides stage-specific tracing for pipeline runs
type StageTracer struct {
	source string
	format string
	tracer trace.Tracer
}

// NewStageTracer creates a tracer for a pipeline run. The source parameter
// names the input kind (file/http) and format the output artifact format.
func NewStageTracer(source, format string) *StageTracer {
	return &StageTracer{
		source: source,
		format: format,
		tracer: tracer,
	}
}

// StartSpan starts a stage span
func (st *StageTracer) StartSpan(ctx context.Context, stage string) (context.Context, *Span) {
	operationName := fmt.Sprintf("pipeline.%s", stage)
	ctx, span := NewSpan(ctx, operationName)

	span.SetAttribute("pipeline.source", st.source)
	span.SetAttribute("pipeline.format", st.format)
	span.SetAttribute("pipeline.stage", stage)

	return ctx, span
}

// TraceStage traces a pipeline stage and records its outcome on the span
func (st *StageTracer) TraceStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	ctx, span := st.StartSpan(ctx, stage)
	defer span.End()

	err := fn(ctx)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttribute("error", true)
		span.SetAttribute("error.message", err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// TraceChunk traces the encoding of a single chunk, annotating row count
// and throughput
func (st *StageTracer) TraceChunk(ctx context.Context, rows int, fn func(context.Context) error) error {
	ctx, span := st.StartSpan(ctx, "encode_chunk")
	defer span.End()

	span.SetAttribute("chunk.rows", rows)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttribute("error", true)
		span.SetAttribute("error.message", err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		if duration > 0 {
			span.SetAttribute("chunk.rows_per_second", float64(rows)/duration.Seconds())
		}
	}

	return err
}
