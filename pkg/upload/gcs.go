package upload

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/pvstream/pkg/errors"
)

// gcsUploader writes artifacts through the object writer API. The
// writer commits the object on Close, so a failed copy leaves nothing
// behind.
type gcsUploader struct {
	bucket string
	client *storage.Client
}

func newGCSUploader(ctx context.Context, config *Config) (*gcsUploader, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create gcs client")
	}

	return &gcsUploader{bucket: config.Bucket, client: client}, nil
}

func (u *gcsUploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	writer := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, body); err != nil {
		_ = writer.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to gcs").
			WithDetail("bucket", u.bucket).
			WithDetail("key", key)
	}

	if err := writer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to commit gcs object").
			WithDetail("bucket", u.bucket).
			WithDetail("key", key)
	}
	return nil
}

func (u *gcsUploader) Provider() string { return ProviderGCS }

func (u *gcsUploader) Close() error {
	return u.client.Close()
}
