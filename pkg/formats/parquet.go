package formats

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/pvstream/pkg/chunk"
	"github.com/ajitpratap0/pvstream/pkg/compression"
	"github.com/ajitpratap0/pvstream/pkg/errors"
)

// parquetWriter emits one Parquet row group per chunk. Dictionary
// encoding is enabled only for the low-cardinality string columns;
// page titles are near-unique and dictionary pages would bloat them.
type parquetWriter struct {
	counted    *countingWriter
	fileWriter *pqarrow.FileWriter
	rows       int64
	closed     bool
}

func newParquetWriter(counted *countingWriter, algorithm compression.Algorithm) (*parquetWriter, error) {
	codec, err := parquetCodec(algorithm)
	if err != nil {
		return nil, err
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithDataPageVersion(parquet.DataPageV2),
		parquet.WithStats(false),
		parquet.WithDictionaryDefault(false),
		parquet.WithDictionaryFor("domain_code", true),
		parquet.WithDictionaryFor("language", true),
		parquet.WithDictionaryFor("domain", true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(memory.NewGoAllocator()),
	)

	fw, err := pqarrow.NewFileWriter(chunk.Schema(), counted, props, arrowProps)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create parquet writer")
	}

	return &parquetWriter{counted: counted, fileWriter: fw}, nil
}

func (w *parquetWriter) WriteChunk(record arrow.Record) error {
	if err := checkSchema(record); err != nil {
		return err
	}

	// One row group per chunk keeps the artifact layout predictable.
	if err := w.fileWriter.Write(record); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write row group")
	}

	w.rows += record.NumRows()
	return nil
}

func (w *parquetWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to finalize parquet file")
	}
	return nil
}

func (w *parquetWriter) Format() Format { return Parquet }

func (w *parquetWriter) RowsWritten() int64 { return w.rows }

func (w *parquetWriter) BytesWritten() int64 { return w.counted.BytesWritten() }

func parquetCodec(algorithm compression.Algorithm) (compress.Compression, error) {
	switch algorithm {
	case compression.None:
		return compress.Codecs.Uncompressed, nil
	case compression.Snappy:
		return compress.Codecs.Snappy, nil
	case compression.Gzip:
		return compress.Codecs.Gzip, nil
	case compression.Zstd:
		return compress.Codecs.Zstd, nil
	case compression.LZ4:
		return compress.Codecs.Lz4Raw, nil
	default:
		return compress.Codecs.Uncompressed, errors.New(errors.ErrorTypeConfig, "unsupported parquet codec").
			WithDetail("algorithm", string(algorithm))
	}
}
