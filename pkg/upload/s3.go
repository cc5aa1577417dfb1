package upload

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajitpratap0/pvstream/pkg/errors"
)

const (
	defaultRegion      = "us-east-1"
	defaultPartSize    = 5 * 1024 * 1024
	defaultConcurrency = 4
)

// s3Uploader uploads artifacts with the multipart upload manager, so
// large parquet files stream in parts instead of one request.
type s3Uploader struct {
	bucket   string
	uploader *manager.Uploader
}

func newS3Uploader(ctx context.Context, config *Config) (*s3Uploader, error) {
	region := config.Region
	if region == "" {
		region = defaultRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load aws config")
	}

	partSize := config.PartSize
	if partSize <= 0 {
		partSize = defaultPartSize
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = concurrency
	})

	return &s3Uploader{bucket: config.Bucket, uploader: uploader}, nil
}

func (u *s3Uploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to s3").
			WithDetail("bucket", u.bucket).
			WithDetail("key", key)
	}
	return nil
}

func (u *s3Uploader) Provider() string { return ProviderS3 }

func (u *s3Uploader) Close() error { return nil }
