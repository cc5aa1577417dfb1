package formats

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/pvstream/pkg/chunk"
	"github.com/ajitpratap0/pvstream/pkg/compression"
	"github.com/ajitpratap0/pvstream/pkg/errors"
)

// arrowWriter emits the Arrow IPC file format, one record batch per
// chunk. Dictionary columns stay dictionary-encoded on the wire.
type arrowWriter struct {
	counted    *countingWriter
	fileWriter *ipc.FileWriter
	rows       int64
	closed     bool
}

func newArrowWriter(counted *countingWriter, algorithm compression.Algorithm) (*arrowWriter, error) {
	opts := []ipc.Option{
		ipc.WithSchema(chunk.Schema()),
		ipc.WithAllocator(memory.NewGoAllocator()),
	}

	switch algorithm {
	case compression.None:
	case compression.Zstd:
		opts = append(opts, ipc.WithZstd())
	case compression.LZ4:
		opts = append(opts, ipc.WithLZ4())
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "arrow ipc supports only zstd and lz4 compression").
			WithDetail("algorithm", string(algorithm))
	}

	fw, err := ipc.NewFileWriter(counted, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create arrow writer")
	}

	return &arrowWriter{counted: counted, fileWriter: fw}, nil
}

func (w *arrowWriter) WriteChunk(record arrow.Record) error {
	if err := checkSchema(record); err != nil {
		return err
	}

	if err := w.fileWriter.Write(record); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write record batch")
	}

	w.rows += record.NumRows()
	return nil
}

func (w *arrowWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to finalize arrow file")
	}
	return nil
}

func (w *arrowWriter) Format() Format { return Arrow }

func (w *arrowWriter) RowsWritten() int64 { return w.rows }

func (w *arrowWriter) BytesWritten() int64 { return w.counted.BytesWritten() }
