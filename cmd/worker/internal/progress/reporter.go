package progress

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/events"
	"github.com/inacomp/submission-judge/internal/types"
)

var tracer = otel.Tracer(
	"github.com/inacomp/submission-judge/cmd/worker/internal/progress",
)

// Publishes the progress of one job to its room
type Reporter struct {
	publisher events.Publisher
	roomID    string
}

func NewReporter(roomID string, publisher events.Publisher) *Reporter {
	return &Reporter{
		publisher: publisher,
		roomID:    roomID,
	}
}

func (r *Reporter) RoomID() string {
	return r.roomID
}

func (r *Reporter) Info(ctx context.Context, message string) error {
	return r.log(ctx, types.LogTypeInfo, message)
}

func (r *Reporter) Success(ctx context.Context, message string) error {
	return r.log(ctx, types.LogTypeSuccess, message)
}

func (r *Reporter) Error(ctx context.Context, message string) error {
	return r.log(ctx, types.LogTypeError, message)
}

func (r *Reporter) log(ctx context.Context, logType types.LogType, message string) error {
	ctx, span := tracer.Start(ctx, "Reporter.Log", trace.WithAttributes(
		attribute.String("room.id", r.roomID),
		attribute.String("log.type", string(logType)),
	))
	defer span.End()

	err := r.publisher.Publish(
		ctx,
		r.roomID,
		types.EventSubmissionLog,
		types.NewSubmissionLog(r.roomID, logType, message),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish log")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "published log")
	return nil
}

func (r *Reporter) Result(ctx context.Context, status types.ResultStatus) error {
	ctx, span := tracer.Start(ctx, "Reporter.Result", trace.WithAttributes(
		attribute.String("room.id", r.roomID),
		attribute.String("result.status", string(status)),
	))
	defer span.End()

	err := r.publisher.Publish(
		ctx,
		r.roomID,
		types.EventSubmissionResult,
		types.NewSubmissionResult(r.roomID, status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish result")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "published result")
	return nil
}
