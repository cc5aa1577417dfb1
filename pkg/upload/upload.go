// Package upload ships finished artifacts to object storage.
//
// Uploads happen after an artifact is fully written, so a failed
// upload never leaves a truncated object next to good ones.
package upload

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/ajitpratap0/pvstream/pkg/errors"
)

// Provider names
const (
	ProviderS3  = "s3"
	ProviderGCS = "gcs"
)

// Uploader stores one artifact under a key in a bucket
type Uploader interface {
	// Upload streams body to the given key. The reader is consumed
	// fully on success.
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error

	// Provider returns the provider name for logs and metrics
	Provider() string

	// Close releases the provider client
	Close() error
}

// Config configures an uploader
type Config struct {
	// Provider selects the backend, "s3" or "gcs"
	Provider string `mapstructure:"provider" json:"provider"`

	// Bucket receives the artifacts
	Bucket string `mapstructure:"bucket" json:"bucket"`

	// Prefix is prepended to every object key
	Prefix string `mapstructure:"prefix" json:"prefix"`

	// Region is the S3 bucket region
	Region string `mapstructure:"region" json:"region"`

	// CredentialsFile points at a GCS service account key. Empty uses
	// application default credentials.
	CredentialsFile string `mapstructure:"credentials_file" json:"credentials_file"`

	// PartSize is the S3 multipart part size in bytes
	PartSize int64 `mapstructure:"part_size" json:"part_size"`

	// Concurrency is the number of parallel S3 part uploads
	Concurrency int `mapstructure:"concurrency" json:"concurrency"`
}

// New creates an uploader for the configured provider.
func New(ctx context.Context, config *Config) (Uploader, error) {
	if config == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "upload config is required")
	}
	if config.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "upload bucket is required")
	}

	switch config.Provider {
	case ProviderS3:
		return newS3Uploader(ctx, config)
	case ProviderGCS:
		return newGCSUploader(ctx, config)
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported upload provider").
			WithDetail("provider", config.Provider)
	}
}

// ObjectKey joins the configured prefix with an artifact filename.
// Keys never start with a slash; S3 and GCS treat that as an empty
// path segment.
func ObjectKey(prefix, filename string) string {
	key := path.Join(prefix, filename)
	return strings.TrimPrefix(key, "/")
}
