package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultBatchSize, cfg.Batch.Size)
	assert.Equal(t, "parquet", cfg.Output.Format)
	assert.Equal(t, "none", cfg.Output.Compression)
	assert.Equal(t, 256*1024, cfg.Source.BufferBytes)
	assert.Equal(t, 1<<20, cfg.Source.MaxLineBytes)
	assert.Equal(t, 5*time.Minute, cfg.HTTP.Timeout)
	assert.True(t, cfg.Observability.EnableMetrics)
	assert.False(t, cfg.FailFast)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := New()
		cfg.Source.Location = "pageviews-20250601-000000.gz"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "missing source",
			mutate:  func(cfg *Config) { cfg.Source.Location = "" },
			wantErr: "source.location",
		},
		{
			name:    "non-positive batch size",
			mutate:  func(cfg *Config) { cfg.Batch.Size = 0 },
			wantErr: "batch.size",
		},
		{
			name:    "unknown format",
			mutate:  func(cfg *Config) { cfg.Output.Format = "orc" },
			wantErr: "output.format",
		},
		{
			name:    "unknown compression",
			mutate:  func(cfg *Config) { cfg.Output.Compression = "brotli" },
			wantErr: "output.compression",
		},
		{
			name: "min views above max views",
			mutate: func(cfg *Config) {
				lo, hi := uint32(100), uint32(10)
				cfg.Filters.MinViews = &lo
				cfg.Filters.MaxViews = &hi
			},
			wantErr: "min_views",
		},
		{
			name:    "s3 upload without bucket",
			mutate:  func(cfg *Config) { cfg.Upload.Provider = "s3" },
			wantErr: "upload.s3.bucket",
		},
		{
			name:    "gcs upload without bucket",
			mutate:  func(cfg *Config) { cfg.Upload.Provider = "gcs" },
			wantErr: "upload.gcs.bucket",
		},
		{
			name:    "unknown provider",
			mutate:  func(cfg *Config) { cfg.Upload.Provider = "azure" },
			wantErr: "upload.provider",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(cfg *Config) { cfg.Observability.TracingSampleRate = 1.5 },
			wantErr: "tracing_sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")

	content := `
name: june-english
source:
  location: https://dumps.example.org/pageviews-20250601-000000.gz
filters:
  languages: [en, de]
  min_views: 10
  mobile: true
batch:
  size: 4096
output:
  format: parquet
  path: ${PVSTREAM_TEST_OUT}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("PVSTREAM_TEST_OUT", "/tmp/pageviews.parquet")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "june-english", cfg.Name)
	assert.Equal(t, []string{"en", "de"}, cfg.Filters.Languages)
	require.NotNil(t, cfg.Filters.MinViews)
	assert.Equal(t, uint32(10), *cfg.Filters.MinViews)
	require.NotNil(t, cfg.Filters.Mobile)
	assert.True(t, *cfg.Filters.Mobile)
	assert.Equal(t, 4096, cfg.Batch.Size)
	assert.Equal(t, "/tmp/pageviews.parquet", cfg.Output.Path)

	// Untouched sections keep their defaults
	assert.Equal(t, "none", cfg.Output.Compression)
	assert.Equal(t, 256*1024, cfg.Source.BufferBytes)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := New()
	cfg.Source.Location = "local.gz"
	cfg.Filters.DomainCodes = []string{"en", "en.m"}
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Source.Location, loaded.Source.Location)
	assert.Equal(t, cfg.Filters.DomainCodes, loaded.Filters.DomainCodes)
}
