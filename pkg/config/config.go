// Package config provides the unified configuration system for pvstream.
// It defines a single Config structure covering a whole pipeline run,
// loaded from YAML with environment variable substitution.
//
// The configuration is organized into logical sections:
//   - Source: where the hourly dump comes from (path or URL)
//   - Filters: pre-parse and post-parse record selection
//   - Batch: columnar chunk sizing
//   - Output: artifact format, location, compression
//   - Upload: optional S3/GCS artifact upload
//   - HTTP: transport tuning for remote dumps
//   - Observability: metrics, tracing, logging
//
// Example usage:
//
//	cfg := config.New()
//	cfg.Source.Location = "pageviews-20250601-000000.gz"
//	cfg.Filters.Languages = []string{"en", "de"}
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"
)

// DefaultBatchSize is the number of records per chunk when unset.
// It matches the Parquet default row-group length so one chunk maps
// onto one row group downstream.
const DefaultBatchSize = 122880

// Config is the single configuration structure for a pipeline run.
type Config struct {
	// Name identifies the run in logs and metrics
	Name string `yaml:"name" json:"name"`

	// Source describes where raw lines come from
	Source SourceConfig `yaml:"source" json:"source"`

	// Filters select which lines and records survive
	Filters FiltersConfig `yaml:"filters" json:"filters"`

	// Batch controls chunk sizing
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Output describes the artifact to produce
	Output OutputConfig `yaml:"output" json:"output"`

	// Upload optionally pushes the finished artifact to object storage
	Upload UploadConfig `yaml:"upload" json:"upload"`

	// HTTP tunes the transport used for remote dumps
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// FailFast aborts the run on the first per-line failure instead of
	// counting and continuing
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// SourceConfig describes the raw-line source.
type SourceConfig struct {
	// Location is a local file path or an http(s) URL
	Location string `yaml:"location" json:"location"`
	// Compression overrides extension-based detection (none, gzip, zstd, lz4)
	Compression string `yaml:"compression" json:"compression"`
	// BufferBytes sets the initial line scanner buffer
	BufferBytes int `yaml:"buffer_bytes" json:"buffer_bytes"`
	// MaxLineBytes caps a single line; longer lines become read failures
	MaxLineBytes int `yaml:"max_line_bytes" json:"max_line_bytes"`
}

// FiltersConfig mirrors the two filter stages. Zero values mean "not
// configured": empty strings, nil slices and nil pointers all pass.
type FiltersConfig struct {
	// LineRegex is matched against whole raw lines before parsing
	LineRegex string `yaml:"line_regex" json:"line_regex"`
	// DomainCodes restricts records to an exact domain-code set
	DomainCodes []string `yaml:"domain_codes" json:"domain_codes"`
	// PageTitle is matched against de-escaped page titles
	PageTitle string `yaml:"page_title" json:"page_title"`
	// MinViews keeps records with views >= the bound
	MinViews *uint32 `yaml:"min_views" json:"min_views"`
	// MaxViews keeps records with views <= the bound
	MaxViews *uint32 `yaml:"max_views" json:"max_views"`
	// Languages restricts records to resolved language codes
	Languages []string `yaml:"languages" json:"languages"`
	// Domains restricts records to resolved project domains
	Domains []string `yaml:"domains" json:"domains"`
	// Mobile keeps only records whose mobile flag equals the value
	Mobile *bool `yaml:"mobile" json:"mobile"`
}

// BatchConfig controls chunk sizing.
type BatchConfig struct {
	// Size is the maximum records per chunk
	Size int `yaml:"size" json:"size"`
}

// OutputConfig describes the artifact to write.
type OutputConfig struct {
	// Format selects the sink (parquet, arrow, avro, csv, jsonl)
	Format string `yaml:"format" json:"format"`
	// Path is the local artifact path
	Path string `yaml:"path" json:"path"`
	// Compression applies to the artifact where the format supports it
	Compression string `yaml:"compression" json:"compression"`
}

// UploadConfig optionally pushes the artifact to object storage.
type UploadConfig struct {
	// Provider selects the uploader ("", "s3", "gcs")
	Provider string `yaml:"provider" json:"provider"`

	S3  S3Config  `yaml:"s3" json:"s3"`
	GCS GCSConfig `yaml:"gcs" json:"gcs"`
}

// S3Config configures the S3 uploader.
type S3Config struct {
	Bucket      string `yaml:"bucket" json:"bucket"`
	Region      string `yaml:"region" json:"region"`
	Prefix      string `yaml:"prefix" json:"prefix"`
	PartSizeMB  int    `yaml:"part_size_mb" json:"part_size_mb"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
}

// GCSConfig configures the GCS uploader.
type GCSConfig struct {
	Bucket          string `yaml:"bucket" json:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
}

// HTTPConfig tunes the transport used to fetch remote dumps.
type HTTPConfig struct {
	// Timeout bounds a whole request
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// ConnectTimeout bounds dialing
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	// MaxIdleConns caps pooled connections
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`
	// UserAgent identifies pvstream to dump mirrors
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates tracing for pipeline runs
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// New creates a Config with production defaults. Callers override what
// they need and then Validate.
func New() *Config {
	return &Config{
		Name: "pvstream",
		Source: SourceConfig{
			BufferBytes:  256 * 1024,
			MaxLineBytes: 1 << 20,
		},
		Batch: BatchConfig{
			Size: DefaultBatchSize,
		},
		Output: OutputConfig{
			Format:      "parquet",
			Compression: "none",
		},
		HTTP: HTTPConfig{
			Timeout:        5 * time.Minute,
			ConnectTimeout: 10 * time.Second,
			MaxIdleConns:   8,
			UserAgent:      "pvstream/1.0",
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			TracingSampleRate: 0.1,
		},
	}
}

// Validate validates the configuration for correctness.
// It checks required fields and ensures values are within acceptable
// ranges. Regex compilation is left to the filter constructor.
func (c *Config) Validate() error {
	if c.Source.Location == "" {
		return fmt.Errorf("source.location is required")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive")
	}
	if c.Source.BufferBytes <= 0 {
		return fmt.Errorf("source.buffer_bytes must be positive")
	}
	if c.Source.MaxLineBytes < c.Source.BufferBytes {
		return fmt.Errorf("source.max_line_bytes must be at least source.buffer_bytes")
	}
	switch c.Output.Format {
	case "parquet", "arrow", "avro", "csv", "jsonl":
	default:
		return fmt.Errorf("output.format %q is not supported", c.Output.Format)
	}
	switch c.Output.Compression {
	case "", "none", "gzip", "zstd", "lz4", "snappy":
	default:
		return fmt.Errorf("output.compression %q is not supported", c.Output.Compression)
	}
	if min, max := c.Filters.MinViews, c.Filters.MaxViews; min != nil && max != nil && *min > *max {
		return fmt.Errorf("filters.min_views exceeds filters.max_views")
	}
	switch c.Upload.Provider {
	case "":
	case "s3":
		if c.Upload.S3.Bucket == "" {
			return fmt.Errorf("upload.s3.bucket is required")
		}
	case "gcs":
		if c.Upload.GCS.Bucket == "" {
			return fmt.Errorf("upload.gcs.bucket is required")
		}
	default:
		return fmt.Errorf("upload.provider %q is not supported", c.Upload.Provider)
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return fmt.Errorf("observability.tracing_sample_rate must be within [0,1]")
	}
	return nil
}

// HasUpload returns true if an upload provider is configured
func (u *UploadConfig) HasUpload() bool {
	return u.Provider != ""
}
