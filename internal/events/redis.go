package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/types"
)

// Ensure RedisPublisher implements Publisher interface.
var _ Publisher = (*RedisPublisher)(nil)

// RedisPublisher sends frames through redis pub/sub. Every relay replica subscribed to the
// channel prefix fans them out to its local room members.
type RedisPublisher struct {
	db     *redis.Client
	prefix string
}

func NewRedisPublisher(db *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{db: db, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, roomID string, event string, payload any) error {
	ctx, span := tracer.Start(ctx, "RedisPublisher.Publish", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("event", event),
	))
	defer span.End()

	frame, err := types.NewFrame(event, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode frame")
		return err
	}

	if err := p.db.Publish(ctx, Channel(p.prefix, roomID), frame).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish frame")
		return fmt.Errorf("failed to publish %s to room %s: %w", event, roomID, err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "published event")
	return nil
}
