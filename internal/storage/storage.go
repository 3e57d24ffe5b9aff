package storage

import (
	"context"
	"io"

	"github.com/yoockh/medscribe/internal/models"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (models.Locator, error)
}

// Opener reads stored objects back. The caller closes the reader.
type Opener interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Bucket is a single object-store bucket able to write and read objects.
// Scheme is the locator scheme it produces ("s3" or "gs").
type Bucket interface {
	Uploader
	Opener
	Scheme() string
	Name() string
}
