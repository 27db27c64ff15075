package upload

import (
	"context"
	"io"
	"mime"
	"path"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/hash"
)

var tracer = otel.Tracer(
	"github.com/inacomp/submission-judge/internal/upload",
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Uploader

// Object storage for archived artifacts
type Uploader interface {
	// Create / Overwrite object contents at `key`
	Upload(ctx context.Context, reader io.ReadSeeker, length int64, key string) error
	// Check if an object exists. Used to skip duplicate uploads, not authoritative.
	//
	// May always return false
	Exists(ctx context.Context, key string) (bool, error)
	// Where objects are being uploaded to, for logging and auditing
	StoreIdentifier(ctx context.Context) (string, error)
}

// ContentType guesses the MIME type of key from its extension.
func ContentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Hashed uploads reader under `prefix/<sha256 of contents><ext>` and returns the key.
//
// reader is rewound before hashing and again before uploading. Nothing is uploaded when the key
// already exists.
func Hashed(
	ctx context.Context,
	u Uploader,
	prefix, ext string,
	reader io.ReadSeeker,
	length int64,
) (string, error) {
	ctx, span := tracer.Start(ctx, "UploadHashed", trace.WithAttributes(
		attribute.String("prefix", prefix),
		attribute.Int64("length", length),
	))
	defer span.End()

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	sum, err := hash.Reader(ctx, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash reader")
		return "", err
	}
	key := path.Join(prefix, sum+ext)
	span.SetAttributes(attribute.String("key", key))

	exists, err := u.Exists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check if object exists")
		return "", err
	}

	if exists {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found existing object")
		return key, nil
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	if err := u.Upload(ctx, reader, length, key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload object")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded object by hash")
	return key, nil
}
