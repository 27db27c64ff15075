package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer(
	"github.com/inacomp/submission-judge/internal/queue",
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Queuer,MessageHandler

// Queuer carries submission jobs from the contest platform to the workers.
type Queuer interface {
	// Enqueue serializes message as JSON.
	Enqueue(ctx context.Context, message any) error
	// Dequeue blocks until one message is available and hands it to handler with timeout.
	//
	// A message whose handler fails is delivered again unless the error is a PoisonError.
	Dequeue(ctx context.Context, timeout time.Duration, handler MessageHandler) error
	Close() error
}

type MessageHandler interface {
	Handle(ctx context.Context, message []byte) error
}

// PoisonError marks a message that can never be handled, such as a job that fails
// validation. It is dropped instead of redelivered.
type PoisonError struct {
	Err error
}

func (p PoisonError) Error() string {
	return fmt.Sprintf("poisoned message: %v", p.Err)
}

func (p PoisonError) Unwrap() error {
	return p.Err
}

func WrapPoisonError(err error) error {
	return &PoisonError{Err: err}
}

// IsPoison reports whether err, or anything it wraps, is a PoisonError.
func IsPoison(err error) bool {
	var pe *PoisonError
	return errors.As(err, &pe)
}
