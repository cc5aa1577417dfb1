package formats

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/pvstream/pkg/compression"
	"github.com/ajitpratap0/pvstream/pkg/errors"
)

// avroSchemaJSON mirrors the chunk schema. Avro has no unsigned types,
// so views widens to long; the optional domain becomes a null union.
const avroSchemaJSON = `{
  "type": "record",
  "name": "pageviews",
  "fields": [
    {"name": "domain_code", "type": "string"},
    {"name": "page_title", "type": "string"},
    {"name": "views", "type": "long"},
    {"name": "language", "type": "string"},
    {"name": "domain", "type": ["null", "string"], "default": null},
    {"name": "mobile", "type": "boolean"}
  ]
}`

// avroWriter emits an Avro object container file, one block per chunk
type avroWriter struct {
	counted   *countingWriter
	ocfWriter *goavro.OCFWriter
	rows      int64
}

func newAvroWriter(counted *countingWriter, algorithm compression.Algorithm) (*avroWriter, error) {
	codec, err := goavro.NewCodec(avroSchemaJSON)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create avro codec")
	}

	compressionName, err := avroCompression(algorithm)
	if err != nil {
		return nil, err
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               counted,
		Codec:           codec,
		CompressionName: compressionName,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create avro writer")
	}

	return &avroWriter{counted: counted, ocfWriter: ocfWriter}, nil
}

func (w *avroWriter) WriteChunk(record arrow.Record) error {
	rows, err := newRowReader(record)
	if err != nil {
		return err
	}

	natives := make([]interface{}, 0, rows.len())
	for i := 0; i < rows.len(); i++ {
		row := rows.row(i)

		// Union values carry the branch name in their native form.
		var domain interface{}
		if row.HasDomain {
			domain = map[string]interface{}{"string": row.Domain}
		}

		natives = append(natives, map[string]interface{}{
			"domain_code": row.DomainCode,
			"page_title":  row.PageTitle,
			"views":       int64(row.Views),
			"language":    row.Language,
			"domain":      domain,
			"mobile":      row.Mobile,
		})
	}

	if err := w.ocfWriter.Append(natives); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to append avro block")
	}

	w.rows += int64(rows.len())
	return nil
}

// Close is a no-op: the container flushes a complete block per Append
// and the OCF format needs no trailer.
func (w *avroWriter) Close() error { return nil }

func (w *avroWriter) Format() Format { return Avro }

func (w *avroWriter) RowsWritten() int64 { return w.rows }

func (w *avroWriter) BytesWritten() int64 { return w.counted.BytesWritten() }

func avroCompression(algorithm compression.Algorithm) (string, error) {
	switch algorithm {
	case compression.None:
		return goavro.CompressionNullLabel, nil
	case compression.Snappy:
		return goavro.CompressionSnappyLabel, nil
	case compression.Gzip:
		// OCF speaks raw deflate, the codec inside gzip.
		return goavro.CompressionDeflateLabel, nil
	default:
		return "", errors.New(errors.ErrorTypeConfig, "avro supports only snappy and deflate compression").
			WithDetail("algorithm", string(algorithm))
	}
}
