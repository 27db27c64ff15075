package upload

import (
	"context"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/codes"

	"github.com/inacomp/submission-judge/internal/logger"
)

// Ensure RetryUploader implements Uploader interface.
var _ Uploader = (*RetryUploader)(nil)

// Wraps every operation of another uploader in a backoff loop
type RetryUploader struct {
	uploader Uploader
	backoff  func() retry.Backoff
}

func NewRetryUploaderBackoff(uploader Uploader, backoff func() retry.Backoff) *RetryUploader {
	return &RetryUploader{
		uploader: uploader,
		backoff:  backoff,
	}
}

// Transcripts are archived after the verdict is published so latency does not matter here.
func NewRetryUploader(uploader Uploader) *RetryUploader {
	return NewRetryUploaderBackoff(uploader, func() retry.Backoff {
		b := retry.NewExponential(time.Second)
		b = retry.WithCappedDuration(15*time.Second, b)
		b = retry.WithMaxDuration(2*time.Minute, b)
		return b
	})
}

func withRetry[T any](
	ctx context.Context,
	r *RetryUploader,
	name string,
	op func(ctx context.Context) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, "RetryUploader."+name)
	defer span.End()

	attempt := 0
	var result T
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "RetryUploader."+name+".Retry")
		defer span.End()

		attempt++
		var err error
		result, err = op(ctx)
		if err != nil {
			logger.Logger.DebugContext(ctx, "upload operation failed",
				"operation", name,
				"attempt", attempt,
				"error", err,
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "attempt failed")
			return retry.RetryableError(err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "attempt succeeded")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retries exhausted")
		var zero T
		return zero, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "operation succeeded")
	return result, nil
}

func (r *RetryUploader) Exists(ctx context.Context, key string) (bool, error) {
	return withRetry(ctx, r, "Exists", func(ctx context.Context) (bool, error) {
		return r.uploader.Exists(ctx, key)
	})
}

func (r *RetryUploader) StoreIdentifier(ctx context.Context) (string, error) {
	return withRetry(ctx, r, "StoreIdentifier", r.uploader.StoreIdentifier)
}

func (r *RetryUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	key string,
) error {
	_, err := withRetry(ctx, r, "Upload", func(ctx context.Context) (struct{}, error) {
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, r.uploader.Upload(ctx, reader, length, key)
	})
	return err
}
