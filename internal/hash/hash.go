package hash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/inacomp/submission-judge/internal/hash")

// Reader returns the hex sha256 of everything left in r.
func Reader(ctx context.Context, r io.Reader) (string, error) {
	_, span := tracer.Start(ctx, "Reader")
	defer span.End()

	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy reader into hasher")
		return "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	span.AddEvent("digested", trace.WithAttributes(
		attribute.String("sum", sum),
		attribute.Int64("bytes", n),
	))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "hashed reader")
	return sum, nil
}
