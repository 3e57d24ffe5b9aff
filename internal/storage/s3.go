package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
)

// S3API is the subset of *s3.Client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

type S3Store struct {
	client S3API
	bucket string
}

func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Scheme() string { return models.StoreS3 }
func (s *S3Store) Name() string   { return s.bucket }

func (s *S3Store) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (models.Locator, error) {
	const op = "S3Store.Upload"

	in := &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectName),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if sized, ok := r.(interface{ Len() int }); ok {
		in.ContentLength = aws.Int64(int64(sized.Len()))
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", utils.StorageError(op, "put object failed", err)
	}
	return models.S3Locator(s.bucket, objectName), nil
}

// Open reads any bucket the credentials can reach, not only the upload bucket:
// transcripts land in the provider output bucket.
func (s *S3Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	const op = "S3Store.Open"

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, utils.K(utils.KindStorage, utils.CodeNotFound, op, "object not found", err)
		}
		return nil, utils.StorageError(op, "get object failed", err)
	}
	return out.Body, nil
}

var _ Bucket = (*S3Store)(nil)
