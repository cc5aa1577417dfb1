// Package chunk batches parsed pageview records into Arrow record
// batches with dictionary-encoded string columns.
//
// Writing rows one at a time into a columnar file is unusably slow,
// while materializing the whole dump needs the file in memory at once.
// Encode sits between the two: it accumulates records into bounded
// batches and yields each batch as an immutable arrow.Record the moment
// it fills, so the batch size knob trades memory for write throughput.
package chunk

import (
	"iter"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/pvstream/pkg/errors"
	"github.com/ajitpratap0/pvstream/pkg/pageviews"
)

// DefaultBatchSize is the number of records per chunk when none is
// configured. It matches the parquet default row group size, costing
// roughly 100MB of working memory on a typical dump.
const DefaultBatchSize = 122_880

var dictOfString = &arrow.DictionaryType{
	IndexType: arrow.PrimitiveTypes.Int32,
	ValueType: arrow.BinaryTypes.String,
}

// Column order is fixed; index i across all six columns describes the
// same source record.
var schema = arrow.NewSchema([]arrow.Field{
	{Name: "domain_code", Type: dictOfString},
	{Name: "page_title", Type: arrow.BinaryTypes.String},
	{Name: "views", Type: arrow.PrimitiveTypes.Uint32},
	{Name: "language", Type: dictOfString},
	{Name: "domain", Type: dictOfString, Nullable: true},
	{Name: "mobile", Type: arrow.FixedWidthTypes.Boolean},
}, nil)

// Schema returns the Arrow schema shared by every chunk. The three
// repetitive string columns are dictionary encoded; domain is nullable
// because unrecognized project codes resolve to no domain.
func Schema() *arrow.Schema {
	return schema
}

// builders holds the six column builders for one in-progress chunk
type builders struct {
	rb         *array.RecordBuilder
	domainCode *array.BinaryDictionaryBuilder
	pageTitle  *array.StringBuilder
	views      *array.Uint32Builder
	language   *array.BinaryDictionaryBuilder
	domain     *array.BinaryDictionaryBuilder
	mobile     *array.BooleanBuilder
	rows       int
}

func newBuilders(mem memory.Allocator) *builders {
	rb := array.NewRecordBuilder(mem, schema)
	return &builders{
		rb:         rb,
		domainCode: rb.Field(0).(*array.BinaryDictionaryBuilder),
		pageTitle:  rb.Field(1).(*array.StringBuilder),
		views:      rb.Field(2).(*array.Uint32Builder),
		language:   rb.Field(3).(*array.BinaryDictionaryBuilder),
		domain:     rb.Field(4).(*array.BinaryDictionaryBuilder),
		mobile:     rb.Field(5).(*array.BooleanBuilder),
	}
}

// append pushes one record onto all six builders. A dictionary intern
// error leaves the builders in an unknown state; the caller must
// abandon the chunk.
func (b *builders) append(rec *pageviews.Record) error {
	if err := b.domainCode.AppendString(rec.DomainCode); err != nil {
		return errors.Wrap(err, errors.ErrorTypeBatchCorruption, "failed to intern domain code")
	}
	if err := b.language.AppendString(rec.Parsed.Language); err != nil {
		return errors.Wrap(err, errors.ErrorTypeBatchCorruption, "failed to intern language")
	}
	if rec.Parsed.HasDomain() {
		if err := b.domain.AppendString(rec.Parsed.Domain); err != nil {
			return errors.Wrap(err, errors.ErrorTypeBatchCorruption, "failed to intern domain")
		}
	} else {
		b.domain.AppendNull()
	}

	b.pageTitle.Append(rec.PageTitle)
	b.views.Append(rec.Views)
	b.mobile.Append(rec.Parsed.Mobile)

	b.rows++
	return nil
}

func (b *builders) release() {
	b.rb.Release()
}

// Encode groups records into chunks of up to batchSize rows. A
// batchSize of zero or less selects DefaultBatchSize.
//
// Records occupy chunks in input order. Error elements in the input
// were already surfaced to the consumer upstream; they are skipped here
// and do not count toward the batch size. Input exhaustion flushes a
// final short chunk unless it would be empty.
//
// Yielded records transfer to the consumer, which must call Release.
// If a dictionary builder fails to intern a value the in-progress chunk
// is abandoned rather than emitted partially, and the sequence ends
// with an ErrorTypeBatchCorruption error.
func Encode(records iter.Seq2[*pageviews.Record, error], batchSize int) iter.Seq2[arrow.Record, error] {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return func(yield func(arrow.Record, error) bool) {
		mem := memory.NewGoAllocator()
		b := newBuilders(mem)
		defer func() { b.release() }()

		for rec, err := range records {
			if err != nil {
				continue
			}

			if err := b.append(rec); err != nil {
				yield(nil, err)
				return
			}

			if b.rows >= batchSize {
				out := b.rb.NewRecord()
				b.release()
				b = newBuilders(mem)
				if !yield(out, nil) {
					return
				}
			}
		}

		if b.rows > 0 {
			yield(b.rb.NewRecord(), nil)
		}
	}
}
