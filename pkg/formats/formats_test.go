package formats

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/pvstream/pkg/chunk"
	"github.com/ajitpratap0/pvstream/pkg/compression"
	"github.com/ajitpratap0/pvstream/pkg/errors"
	"github.com/ajitpratap0/pvstream/pkg/json"
	"github.com/ajitpratap0/pvstream/pkg/pageviews"
)

var sampleLines = []string{
	"en Main_Page 1000 0",
	"de.m Startseite 500 0",
	"commons.m Commons_Picture 3 0",
	"en.x Odd_Code 7 0",
}

func buildChunks(t *testing.T, batchSize int, lines ...string) []arrow.Record {
	t.Helper()

	source := func(yield func(*pageviews.Record, error) bool) {
		for _, line := range lines {
			record, err := pageviews.ParseLine(line)
			if err != nil {
				t.Fatalf("Failed to parse fixture line %q: %v", line, err)
			}
			if !yield(record, nil) {
				return
			}
		}
	}

	var chunks []arrow.Record
	for record, err := range chunk.Encode(source, batchSize) {
		if err != nil {
			t.Fatalf("Failed to encode chunk: %v", err)
		}
		chunks = append(chunks, record)
		t.Cleanup(record.Release)
	}
	return chunks
}

func writeAll(t *testing.T, w Writer, chunks []arrow.Record) {
	t.Helper()

	for _, c := range chunks {
		if err := w.WriteChunk(c); err != nil {
			t.Fatalf("Failed to write chunk: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{"", Parquet},
		{"parquet", Parquet},
		{"arrow", Arrow},
		{"ipc", Arrow},
		{"avro", Avro},
		{"csv", CSV},
		{"jsonl", JSONL},
		{"ndjson", JSONL},
	}

	for _, tt := range tests {
		format, err := ParseFormat(tt.name)
		if err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", tt.name, err)
			continue
		}
		if format != tt.format {
			t.Errorf("ParseFormat(%q) = %s, expected %s", tt.name, format, tt.format)
		}
	}

	if _, err := ParseFormat("orc"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestParquetRoundTrip(t *testing.T) {
	chunks := buildChunks(t, 2, sampleLines...)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: Parquet})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	writeAll(t, w, chunks)

	if w.RowsWritten() != int64(len(sampleLines)) {
		t.Errorf("Expected %d rows written, got %d", len(sampleLines), w.RowsWritten())
	}
	if w.BytesWritten() == 0 || int64(buf.Len()) != w.BytesWritten() {
		t.Errorf("Expected BytesWritten to match buffer size %d, got %d", buf.Len(), w.BytesWritten())
	}

	fr, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to open parquet file: %v", err)
	}
	defer fr.Close()

	if fr.NumRows() != int64(len(sampleLines)) {
		t.Errorf("Expected %d rows, got %d", len(sampleLines), fr.NumRows())
	}
	if fr.NumRowGroups() != 2 {
		t.Errorf("Expected one row group per chunk, got %d", fr.NumRowGroups())
	}

	ar, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		t.Fatalf("Failed to create arrow reader: %v", err)
	}

	table, err := ar.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("Failed to read table: %v", err)
	}
	defer table.Release()

	if table.NumRows() != int64(len(sampleLines)) {
		t.Errorf("Expected %d table rows, got %d", len(sampleLines), table.NumRows())
	}
	for i, name := range []string{"domain_code", "page_title", "views", "language", "domain", "mobile"} {
		if got := table.Schema().Field(i).Name; got != name {
			t.Errorf("Column %d: expected %q, got %q", i, name, got)
		}
	}
}

func TestArrowRoundTrip(t *testing.T) {
	chunks := buildChunks(t, 2, sampleLines...)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: Arrow})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	writeAll(t, w, chunks)

	reader, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		t.Fatalf("Failed to open arrow file: %v", err)
	}
	defer reader.Close()

	if reader.NumRecords() != 2 {
		t.Fatalf("Expected 2 record batches, got %d", reader.NumRecords())
	}

	first, err := reader.Record(0)
	if err != nil {
		t.Fatalf("Failed to read first batch: %v", err)
	}

	rows, err := newRowReader(first)
	if err != nil {
		t.Fatalf("Failed to decode batch: %v", err)
	}
	row := rows.row(0)
	if row.DomainCode != "en" || row.PageTitle != "Main_Page" || row.Views != 1000 {
		t.Errorf("Unexpected first row: %+v", row)
	}
	if !row.HasDomain || row.Domain != "wikipedia.org" {
		t.Errorf("Expected wikipedia.org domain, got %+v", row)
	}
}

func TestAvroRoundTrip(t *testing.T) {
	chunks := buildChunks(t, 0, sampleLines...)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: Avro})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	writeAll(t, w, chunks)

	ocfReader, err := goavro.NewOCFReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to open avro file: %v", err)
	}

	var rows []map[string]interface{}
	for ocfReader.Scan() {
		datum, err := ocfReader.Read()
		if err != nil {
			t.Fatalf("Failed to read avro datum: %v", err)
		}
		rows = append(rows, datum.(map[string]interface{}))
	}

	if len(rows) != len(sampleLines) {
		t.Fatalf("Expected %d rows, got %d", len(sampleLines), len(rows))
	}

	first := rows[0]
	if first["domain_code"] != "en" {
		t.Errorf("Expected domain_code en, got %v", first["domain_code"])
	}
	if first["views"] != int64(1000) {
		t.Errorf("Expected views 1000, got %v", first["views"])
	}
	domain := first["domain"].(map[string]interface{})
	if domain["string"] != "wikipedia.org" {
		t.Errorf("Expected wikipedia.org, got %v", domain)
	}

	// en.x resolves to no recognized domain, so the union is null.
	if rows[3]["domain"] != nil {
		t.Errorf("Expected null domain, got %v", rows[3]["domain"])
	}
	if rows[1]["mobile"] != true {
		t.Errorf("Expected mobile row, got %v", rows[1]["mobile"])
	}
}

func TestCSVOutput(t *testing.T) {
	chunks := buildChunks(t, 0, sampleLines...)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: CSV})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	writeAll(t, w, chunks)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(sampleLines)+1 {
		t.Fatalf("Expected header plus %d rows, got %d lines", len(sampleLines), len(lines))
	}
	if lines[0] != "domain_code,page_title,views,language,domain,mobile" {
		t.Errorf("Unexpected header: %q", lines[0])
	}
	if lines[1] != "en,Main_Page,1000,en,wikipedia.org,false" {
		t.Errorf("Unexpected first row: %q", lines[1])
	}
	if lines[2] != "de.m,Startseite,500,de,wikipedia.org,true" {
		t.Errorf("Unexpected second row: %q", lines[2])
	}
	if lines[4] != "en.x,Odd_Code,7,en,,false" {
		t.Errorf("Expected empty domain field, got %q", lines[4])
	}
}

func TestCSVGzipOutput(t *testing.T) {
	chunks := buildChunks(t, 0, sampleLines...)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: CSV, Compression: "gzip"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	writeAll(t, w, chunks)

	decompressor, err := compression.NewReader(bytes.NewReader(buf.Bytes()), compression.Gzip)
	if err != nil {
		t.Fatalf("Failed to open decompressor: %v", err)
	}
	defer decompressor.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(decompressor); err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != len(sampleLines)+1 {
		t.Fatalf("Expected header plus %d rows, got %d lines", len(sampleLines), len(lines))
	}
}

func TestJSONLOutput(t *testing.T) {
	chunks := buildChunks(t, 0, sampleLines...)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: JSONL})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	writeAll(t, w, chunks)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(sampleLines) {
		t.Fatalf("Expected %d lines, got %d", len(sampleLines), len(lines))
	}

	var first jsonRow
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Failed to decode first line: %v", err)
	}
	if first.DomainCode != "en" || first.Views != 1000 {
		t.Errorf("Unexpected first row: %+v", first)
	}
	if first.Domain == nil || *first.Domain != "wikipedia.org" {
		t.Errorf("Expected wikipedia.org domain, got %v", first.Domain)
	}

	var last jsonRow
	if err := json.Unmarshal([]byte(lines[3]), &last); err != nil {
		t.Fatalf("Failed to decode last line: %v", err)
	}
	if last.Domain != nil {
		t.Errorf("Expected null domain, got %v", *last.Domain)
	}
}

func TestWriteChunkSchemaMismatch(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "value", Type: arrow.BinaryTypes.String},
	}, nil)
	rb := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer rb.Release()
	rb.Field(0).(*array.StringBuilder).Append("oops")
	record := rb.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: Parquet})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	err = w.WriteChunk(record)
	if err == nil {
		t.Fatal("Expected schema mismatch error")
	}
	if !errors.IsType(err, errors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestNewWriterUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, &WriterConfig{Format: Format("orc")}); err == nil {
		t.Fatal("Expected error for unknown format")
	}
}

func TestNewWriterRejectsUnsupportedCompression(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, &WriterConfig{Format: Avro, Compression: "zstd"}); err == nil {
		t.Fatal("Expected error for unsupported avro codec")
	}
	if _, err := NewWriter(&buf, &WriterConfig{Format: Arrow, Compression: "gzip"}); err == nil {
		t.Fatal("Expected error for unsupported arrow codec")
	}
}
