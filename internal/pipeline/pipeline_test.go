package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pvstream/pkg/config"
	"github.com/ajitpratap0/pvstream/pkg/errors"
	"github.com/ajitpratap0/pvstream/pkg/pageviews"
)

var fixtureLines = []string{
	"en Main_Page 1000 0",
	"en.m Main_Page 750 0",
	"de Berlin 1200 0",
	"de.m.b Koch 5 0",
	"en Small_Page 3 0",
	"broken_line_without_views",
	"fr Paris 800 0",
	"commons.m Picture_of_the_day 42 0",
}

func writeFixture(t *testing.T, gzipped bool, lines []string) string {
	t.Helper()

	dir := t.TempDir()
	if gzipped {
		path := filepath.Join(dir, "pageviews-20240818-080000.gz")
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("Failed to create fixture: %v", err)
		}
		gw := gzip.NewWriter(f)
		for _, line := range lines {
			if _, err := gw.Write([]byte(line + "\n")); err != nil {
				t.Fatalf("Failed to write fixture: %v", err)
			}
		}
		if err := gw.Close(); err != nil {
			t.Fatalf("Failed to close gzip writer: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("Failed to close fixture: %v", err)
		}
		return path
	}

	path := filepath.Join(dir, "pageviews-20240818-080000.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func testConfig(t *testing.T, source string) *config.Config {
	t.Helper()

	cfg := config.New()
	cfg.Name = "test"
	cfg.Source.Location = source
	cfg.Output.Format = "csv"
	cfg.Output.Path = filepath.Join(t.TempDir(), "out.csv")
	return cfg
}

func TestRunCSV(t *testing.T) {
	source := writeFixture(t, true, fixtureLines)
	cfg := testConfig(t, source)

	p, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.LinesRead != 8 {
		t.Errorf("Expected 8 lines read, got %d", result.LinesRead)
	}
	if result.ParseFailures != 1 {
		t.Errorf("Expected 1 parse failure, got %d", result.ParseFailures)
	}
	if result.RecordsParsed != 7 {
		t.Errorf("Expected 7 records parsed, got %d", result.RecordsParsed)
	}
	if result.Rows != 7 {
		t.Errorf("Expected 7 rows written, got %d", result.Rows)
	}
	if result.Chunks != 1 {
		t.Errorf("Expected 1 chunk, got %d", result.Chunks)
	}
	if result.BytesRead == 0 {
		t.Error("Expected compressed bytes to be counted")
	}

	data, err := os.ReadFile(cfg.Output.Path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("Expected header plus 7 rows, got %d lines", len(lines))
	}
	if lines[1] != "en,Main_Page,1000,en,wikipedia.org,false" {
		t.Errorf("Unexpected first row: %q", lines[1])
	}
	if int64(len(data)) != result.ArtifactBytes {
		t.Errorf("Expected artifact bytes %d, got %d", len(data), result.ArtifactBytes)
	}
}

func TestRunAppliesFilters(t *testing.T) {
	source := writeFixture(t, true, fixtureLines)
	cfg := testConfig(t, source)
	cfg.Filters.Languages = []string{"en"}
	cfg.Filters.MinViews = pageviews.Uint32(10)

	p, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// en rows with >= 10 views: Main_Page desktop, Main_Page mobile,
	// and the commons meta project which resolves to language en.
	if result.Rows != 3 {
		t.Errorf("Expected 3 rows, got %d", result.Rows)
	}
	if result.FilteredRecords != 4 {
		t.Errorf("Expected 4 records filtered, got %d", result.FilteredRecords)
	}

	data, err := os.ReadFile(cfg.Output.Path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	if strings.Contains(string(data), "Berlin") {
		t.Error("Filtered record leaked into artifact")
	}
}

func TestRunPreFilter(t *testing.T) {
	source := writeFixture(t, true, fixtureLines)
	cfg := testConfig(t, source)
	cfg.Filters.LineRegex = "^en[. ]"

	p, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// en, en.m and en again survive the line regex; everything else is
	// rejected before parsing, including the broken line.
	if result.Rows != 3 {
		t.Errorf("Expected 3 rows, got %d", result.Rows)
	}
	if result.FilteredLines != 5 {
		t.Errorf("Expected 5 lines filtered, got %d", result.FilteredLines)
	}
	if result.ParseFailures != 0 {
		t.Errorf("Expected no parse failures, got %d", result.ParseFailures)
	}
}

func TestRunParquet(t *testing.T) {
	source := writeFixture(t, false, fixtureLines)
	cfg := testConfig(t, source)
	cfg.Output.Format = "parquet"
	cfg.Output.Path = filepath.Join(t.TempDir(), "out.parquet")
	cfg.Batch.Size = 3

	p, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Rows != 7 {
		t.Errorf("Expected 7 rows, got %d", result.Rows)
	}
	if result.Chunks != 3 {
		t.Errorf("Expected 3 chunks for batch size 3, got %d", result.Chunks)
	}

	data, err := os.ReadFile(cfg.Output.Path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}

	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to open parquet artifact: %v", err)
	}
	defer fr.Close()

	if fr.NumRows() != 7 {
		t.Errorf("Expected 7 parquet rows, got %d", fr.NumRows())
	}
	if fr.NumRowGroups() != 3 {
		t.Errorf("Expected 3 row groups, got %d", fr.NumRowGroups())
	}
}

func TestRunFailFast(t *testing.T) {
	source := writeFixture(t, true, fixtureLines)
	cfg := testConfig(t, source)
	cfg.FailFast = true

	p, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	_, err = p.Run(context.Background())
	if err == nil {
		t.Fatal("Expected run to abort on the malformed line")
	}
	if !errors.IsType(err, errors.ErrorTypeMissingField) {
		t.Errorf("Expected missing field error, got %v", err)
	}

	if _, statErr := os.Stat(cfg.Output.Path); !os.IsNotExist(statErr) {
		t.Error("Expected partial artifact to be removed")
	}
}

func TestRunCancelled(t *testing.T) {
	source := writeFixture(t, true, fixtureLines)
	cfg := testConfig(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	if _, err := p.Run(ctx); err == nil {
		t.Fatal("Expected error from cancelled context")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.New()

	_, err := New(cfg, zap.NewNop())
	if err == nil {
		t.Fatal("Expected error for missing source location")
	}
	if !errors.IsType(err, errors.ErrorTypeConfig) {
		t.Errorf("Expected config error, got %v", err)
	}
}

func TestArtifactPathDerivation(t *testing.T) {
	tests := []struct {
		location string
		format   string
		want     string
	}{
		{"/data/pageviews-20240818-080000.gz", "parquet", "pageviews-20240818-080000.parquet"},
		{"https://dumps.wikimedia.org/other/pageviews/2024/2024-08/pageviews-20240818-080000.gz", "avro", "pageviews-20240818-080000.avro"},
		{"dump.txt", "csv", "dump.csv"},
	}

	for _, tt := range tests {
		cfg := config.New()
		cfg.Source.Location = tt.location
		cfg.Output.Format = tt.format

		p, err := New(cfg, zap.NewNop())
		if err != nil {
			t.Fatalf("Failed to create pipeline: %v", err)
		}
		if got := p.artifactPath(); got != tt.want {
			t.Errorf("artifactPath(%q, %s) = %q, expected %q", tt.location, tt.format, got, tt.want)
		}
	}
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		line string
		kind string
	}{
		{"", "missing_page_title"},
		{"en", "missing_page_title"},
		{"en Main_Page", "missing_views"},
		{"en Main_Page abc", "invalid_views"},
		{"en Main_Page 99999999999 0", "invalid_views"},
	}

	for _, tt := range tests {
		_, err := pageviews.ParseLine(tt.line)
		if err == nil {
			t.Fatalf("Expected parse failure for %q", tt.line)
		}
		if got := failureKind(err); got != tt.kind {
			t.Errorf("failureKind(%q) = %q, expected %q", tt.line, got, tt.kind)
		}
	}
}
