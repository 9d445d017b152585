package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/amillerrr/media-ingest/pkg/models"
)

// Default timeout for non-streaming S3 operations. Uploads are bounded by
// the request context instead, since a 1 GiB body can legitimately take
// minutes.
const DefaultS3Timeout = 30 * time.Second

// ObjectStore pushes local files to S3 and mints presigned read URLs.
type ObjectStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewObjectStore creates an ObjectStore for the given bucket.
func NewObjectStore(client *s3.Client, bucket string) *ObjectStore {
	return &ObjectStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

// Bucket returns the configured bucket name.
func (o *ObjectStore) Bucket() string {
	return o.bucket
}

// Upload streams the file at localPath to S3 under key. The file handle is
// passed directly as the request body so the object is never buffered in
// memory.
func (o *ObjectStore) Upload(ctx context.Context, localPath, key, contentType string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", models.ErrIO, localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", models.ErrIO, localPath, err)
	}

	_, err = o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(o.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("%w: put object %s: %v", models.ErrStorage, key, err)
	}

	return nil
}

// Presign derives a time-limited read URL for key. It never mutates stored
// state and is safe to call repeatedly and concurrently.
func (o *ObjectStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	req, err := o.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", models.ErrStorage, key, err)
	}

	return req.URL, nil
}
