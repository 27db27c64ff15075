// Package events publishes submission progress to the room relay.
package events

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/inacomp/submission-judge/internal/events")

var ErrNotConnected = errors.New("not connected to the event relay")

//go:generate mockgen -destination ./mock/mock.go -package mock . Publisher

type Publisher interface {
	// Publish delivers event with payload to every subscriber of roomID. Delivery is best effort.
	Publish(ctx context.Context, roomID string, event string, payload any) error
}

// Ensure Discard implements Publisher interface.
var _ Publisher = Discard{}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, string, string, any) error {
	return nil
}

// Channel is the redis pub/sub channel carrying the events of roomID.
func Channel(prefix, roomID string) string {
	return prefix + roomID
}
