package formats

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/pvstream/pkg/compression"
	"github.com/ajitpratap0/pvstream/pkg/errors"
	"github.com/ajitpratap0/pvstream/pkg/json"
)

var csvHeader = []string{"domain_code", "page_title", "views", "language", "domain", "mobile"}

// csvWriter emits a header row followed by one row per record. An
// absent domain becomes an empty field.
type csvWriter struct {
	counted    *countingWriter
	compressor io.WriteCloser
	csv        *csv.Writer
	rows       int64
	wroteHead  bool
	closed     bool
}

func newCSVWriter(counted *countingWriter, algorithm compression.Algorithm) (*csvWriter, error) {
	compressor, err := compression.NewWriter(counted, algorithm, compression.Default)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create csv compressor")
	}

	return &csvWriter{
		counted:    counted,
		compressor: compressor,
		csv:        csv.NewWriter(compressor),
	}, nil
}

func (w *csvWriter) WriteChunk(record arrow.Record) error {
	rows, err := newRowReader(record)
	if err != nil {
		return err
	}

	if !w.wroteHead {
		if err := w.csv.Write(csvHeader); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write csv header")
		}
		w.wroteHead = true
	}

	for i := 0; i < rows.len(); i++ {
		row := rows.row(i)
		fields := []string{
			row.DomainCode,
			row.PageTitle,
			strconv.FormatUint(uint64(row.Views), 10),
			row.Language,
			row.Domain,
			strconv.FormatBool(row.Mobile),
		}
		if err := w.csv.Write(fields); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write csv row")
		}
	}

	w.rows += int64(rows.len())
	return nil
}

func (w *csvWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to flush csv")
	}
	if err := w.compressor.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to flush compressor")
	}
	return nil
}

func (w *csvWriter) Format() Format { return CSV }

func (w *csvWriter) RowsWritten() int64 { return w.rows }

func (w *csvWriter) BytesWritten() int64 { return w.counted.BytesWritten() }

// jsonRow is the JSONL wire shape. The domain pointer renders null
// when the code carried no recognized domain.
type jsonRow struct {
	DomainCode string  `json:"domain_code"`
	PageTitle  string  `json:"page_title"`
	Views      uint32  `json:"views"`
	Language   string  `json:"language"`
	Domain     *string `json:"domain"`
	Mobile     bool    `json:"mobile"`
}

// jsonlWriter emits one JSON object per line
type jsonlWriter struct {
	counted    *countingWriter
	compressor io.WriteCloser
	encoder    *json.StreamingEncoder
	rows       int64
	closed     bool
}

func newJSONLWriter(counted *countingWriter, algorithm compression.Algorithm) (*jsonlWriter, error) {
	compressor, err := compression.NewWriter(counted, algorithm, compression.Default)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create jsonl compressor")
	}

	return &jsonlWriter{
		counted:    counted,
		compressor: compressor,
		encoder:    json.NewStreamingEncoder(compressor, false),
	}, nil
}

func (w *jsonlWriter) WriteChunk(record arrow.Record) error {
	rows, err := newRowReader(record)
	if err != nil {
		return err
	}

	for i := 0; i < rows.len(); i++ {
		row := rows.row(i)

		out := jsonRow{
			DomainCode: row.DomainCode,
			PageTitle:  row.PageTitle,
			Views:      row.Views,
			Language:   row.Language,
			Mobile:     row.Mobile,
		}
		if row.HasDomain {
			domain := row.Domain
			out.Domain = &domain
		}

		if err := w.encoder.Encode(&out); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode jsonl row")
		}
	}

	w.rows += int64(rows.len())
	return nil
}

func (w *jsonlWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.encoder.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to finalize jsonl output")
	}
	if err := w.compressor.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to flush compressor")
	}
	return nil
}

func (w *jsonlWriter) Format() Format { return JSONL }

func (w *jsonlWriter) RowsWritten() int64 { return w.rows }

func (w *jsonlWriter) BytesWritten() int64 { return w.counted.BytesWritten() }
