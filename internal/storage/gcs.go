package storage

import (
	"context"
	"errors"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
)

type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore uses application default credentials unless opts override them.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: c, bucket: bucket}, nil
}

func (u *GCSStore) Close() error { return u.client.Close() }

func (u *GCSStore) Scheme() string { return models.StoreGCS }
func (u *GCSStore) Name() string   { return u.bucket }

func (u *GCSStore) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (models.Locator, error) {
	const op = "GCSStore.Upload"

	obj := u.client.Bucket(u.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", utils.StorageError(op, "write object failed", err)
	}
	if err := w.Close(); err != nil {
		return "", utils.StorageError(op, "finalize object failed", err)
	}

	return models.GCSLocator(u.bucket, objectName), nil
}

func (u *GCSStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	const op = "GCSStore.Open"

	rc, err := u.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, utils.K(utils.KindStorage, utils.CodeNotFound, op, "object not found", err)
		}
		return nil, utils.StorageError(op, "open object failed", err)
	}
	return rc, nil
}

var _ Bucket = (*GCSStore)(nil)
