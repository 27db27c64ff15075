package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/logger"
)

const (
	defaultRedisBlock = time.Second
	processingSuffix  = ":processing"
)

// Redis list backed queuer
//
// Messages are pushed on the left of the list and moved atomically onto a processing list while
// they are handled. Handler failures that are not poison push the message back onto the queue.
type RedisQueuer struct {
	db            *redis.Client
	key           string
	processingKey string
	block         time.Duration
}

var _ Queuer = (*RedisQueuer)(nil)

func NewRedisQueuer(db *redis.Client, name string) *RedisQueuer {
	return &RedisQueuer{
		db:            db,
		key:           name,
		processingKey: name + processingSuffix,
		block:         defaultRedisBlock,
	}
}

// The redis client is owned by the caller
func (q *RedisQueuer) Close() error {
	return nil
}

func (q *RedisQueuer) Enqueue(ctx context.Context, message any) error {
	ctx, span := tracer.Start(ctx, "Redis.Enqueue", trace.WithAttributes(
		attribute.String("queue", q.key),
	))
	defer span.End()

	msgJSON, err := json.Marshal(message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return err
	}

	if err := q.db.LPush(ctx, q.key, msgJSON).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued message")
	return nil
}

func (q *RedisQueuer) Dequeue(
	ctx context.Context,
	timeout time.Duration,
	handler MessageHandler,
) error {
	ctx, span := tracer.Start(ctx, "Redis.Dequeue", trace.WithAttributes(
		attribute.String("queue", q.key),
		attribute.Int64("timeoutSecs", int64(timeout.Seconds())),
	))
	defer span.End()

	var msg string
	for {
		var err error
		msg, err = q.db.BLMove(ctx, q.key, q.processingKey, "RIGHT", "LEFT", q.block).Result()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context cancelled")
			return ctx.Err()
		}
		if !errors.Is(err, redis.Nil) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to dequeue message")
			return err
		}
	}

	span.AddEvent("got_message", trace.WithAttributes(
		attribute.Int("bytes", len(msg)),
	))

	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	handlerErr := handler.Handle(handlerCtx, []byte(msg))

	// the message must leave the processing list even when the worker is shutting down
	cleanupCtx := context.WithoutCancel(ctx)

	if handlerErr != nil && !IsPoison(handlerErr) {
		span.AddEvent("failed_message_handler", trace.WithAttributes(
			attribute.String("error", handlerErr.Error()),
		))
		logger.Logger.WarnContext(ctx, "requeueing message after handler failure",
			"queue", q.key,
			"error", handlerErr,
		)

		_, err := q.db.TxPipelined(cleanupCtx, func(pipe redis.Pipeliner) error {
			pipe.LRem(cleanupCtx, q.processingKey, 1, msg)
			pipe.LPush(cleanupCtx, q.key, msg)
			return nil
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to requeue message")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "dequeued message but failed to handle")
		return nil
	}

	if err := q.db.LRem(cleanupCtx, q.processingKey, 1, msg).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dequeued message")
	return nil
}
