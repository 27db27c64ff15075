package upload

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensure MinioArchive implements Uploader interface.
var _ Uploader = (*MinioArchive)(nil)

// Transcript archive in an S3 compatible bucket
type MinioArchive struct {
	client *minio.Client
	bucket string
}

func NewMinioArchive(
	endpoint, id, secret string,
	ssl bool,
	bucket string,
) (*MinioArchive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(id, secret, ""),
		Secure: ssl,
	})
	if err != nil {
		return nil, err
	}

	return &MinioArchive{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioArchive) EnsureBucket(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "MinioArchive.EnsureBucket", trace.WithAttributes(
		attribute.String("bucket", m.bucket),
	))
	defer span.End()

	err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	if err != nil {
		// a racing worker may have made it first
		exists, existsErr := m.client.BucketExists(ctx, m.bucket)
		if existsErr != nil || !exists {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to make bucket")
			return err
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "bucket ready")
	return nil
}

func (m *MinioArchive) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	key string,
) error {
	contentType := ContentType(key)
	ctx, span := tracer.Start(ctx, "MinioArchive.Upload", trace.WithAttributes(
		attribute.String("key", key),
		attribute.String("content_type", contentType),
		attribute.Int64("length", length),
	))
	defer span.End()

	info, err := m.client.PutObject(ctx, m.bucket, key, reader, length, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put object")
		return err
	}

	span.SetAttributes(attribute.String("etag", info.ETag))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "put object")
	return nil
}

func (m *MinioArchive) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "MinioArchive.Exists", trace.WithAttributes(
		attribute.String("key", key),
	))
	defer span.End()

	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "did not find object")
			return false, nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to stat object")
		return false, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "found object")
	return true, nil
}

func (m *MinioArchive) StoreIdentifier(_ context.Context) (string, error) {
	return m.bucket, nil
}
