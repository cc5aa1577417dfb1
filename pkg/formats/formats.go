// Package formats writes pageview chunks to analytics file formats.
//
// Parquet is the primary artifact format. Arrow IPC, Avro OCF, CSV and
// JSONL writers cover interchange with systems that do not speak
// Parquet. All writers consume the Arrow chunks produced by the chunk
// package, so a single pipeline pass can feed any of them.
package formats

import (
	"io"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/pvstream/pkg/chunk"
	"github.com/ajitpratap0/pvstream/pkg/compression"
	"github.com/ajitpratap0/pvstream/pkg/errors"
)

// Format identifies an output file format
type Format string

const (
	// Parquet is Apache Parquet, the primary artifact format
	Parquet Format = "parquet"
	// Arrow is the Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Avro is the Apache Avro object container file format
	Avro Format = "avro"
	// CSV is comma-separated values with a header row
	CSV Format = "csv"
	// JSONL is newline-delimited JSON, one record per line
	JSONL Format = "jsonl"
)

// ParseFormat resolves a format name. Empty defaults to Parquet.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", "parquet":
		return Parquet, nil
	case "arrow", "ipc", "feather":
		return Arrow, nil
	case "avro":
		return Avro, nil
	case "csv":
		return CSV, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	default:
		return "", errors.New(errors.ErrorTypeConfig, "unsupported output format").
			WithDetail("format", name)
	}
}

// Extension returns the conventional file extension including the dot
func (f Format) Extension() string {
	switch f {
	case Parquet:
		return ".parquet"
	case Arrow:
		return ".arrow"
	case Avro:
		return ".avro"
	case CSV:
		return ".csv"
	case JSONL:
		return ".jsonl"
	default:
		return ""
	}
}

// ContentType returns the MIME type used when uploading artifacts
func (f Format) ContentType() string {
	switch f {
	case Parquet:
		return "application/vnd.apache.parquet"
	case Arrow:
		return "application/vnd.apache.arrow.file"
	case Avro:
		return "avro/binary"
	case CSV:
		return "text/csv"
	case JSONL:
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}

// Writer persists pageview chunks to one output artifact. Writers are
// not safe for concurrent use; the pipeline feeds chunks from a single
// goroutine.
type Writer interface {
	// WriteChunk appends one chunk to the artifact. The chunk must
	// carry the pageviews schema; the caller keeps ownership and
	// releases it afterwards.
	WriteChunk(chunk arrow.Record) error

	// Close finalizes the artifact. The underlying io.Writer is left
	// open for the caller.
	Close() error

	// Format returns the format this writer produces
	Format() Format

	// RowsWritten returns the rows appended so far
	RowsWritten() int64

	// BytesWritten returns bytes emitted to the underlying writer
	BytesWritten() int64
}

// WriterConfig configures output writers. The zero value produces
// uncompressed Parquet.
type WriterConfig struct {
	Format Format

	// Compression names the artifact codec. For Parquet and Avro it
	// selects the format's internal codec; for CSV and JSONL the
	// whole stream is wrapped; for Arrow IPC only zstd and lz4 apply
	// as buffer compression. Empty means uncompressed.
	Compression string
}

// NewWriter creates a writer for the configured format on top of w.
func NewWriter(w io.Writer, config *WriterConfig) (Writer, error) {
	if config == nil {
		config = &WriterConfig{Format: Parquet}
	}

	format := config.Format
	if format == "" {
		format = Parquet
	}

	algorithm, err := compression.ParseAlgorithm(config.Compression)
	if err != nil {
		return nil, err
	}

	counted := &countingWriter{w: w}

	switch format {
	case Parquet:
		return newParquetWriter(counted, algorithm)
	case Arrow:
		return newArrowWriter(counted, algorithm)
	case Avro:
		return newAvroWriter(counted, algorithm)
	case CSV:
		return newCSVWriter(counted, algorithm)
	case JSONL:
		return newJSONLWriter(counted, algorithm)
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported output format").
			WithDetail("format", string(format))
	}
}

// countingWriter tracks bytes emitted to the destination
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	atomic.AddInt64(&c.n, int64(n))
	return n, err
}

func (c *countingWriter) BytesWritten() int64 {
	return atomic.LoadInt64(&c.n)
}

// checkSchema rejects chunks that do not carry the pageviews schema.
func checkSchema(record arrow.Record) error {
	if !record.Schema().Equal(chunk.Schema()) {
		return errors.New(errors.ErrorTypeValidation, "chunk schema mismatch").
			WithDetail("schema", record.Schema().String())
	}
	return nil
}
