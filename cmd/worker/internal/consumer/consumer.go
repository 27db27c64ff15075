package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/inacomp/submission-judge/internal/audit"
	"github.com/inacomp/submission-judge/internal/jobschema"
	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/queue"
	"github.com/inacomp/submission-judge/internal/types"
)

var tracer = otel.Tracer(
	"github.com/inacomp/submission-judge/cmd/worker/internal/consumer",
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Evaluator

type Evaluator interface {
	Evaluate(ctx context.Context, job *types.SubmissionJob) error
}

// Ensure Consumer implements MessageHandler interface.
var _ queue.MessageHandler = (*Consumer)(nil)

// Consumer pulls jobs off a queue with a fixed number of goroutines. Each goroutine evaluates
// one job to completion before taking the next.
type Consumer struct {
	queuer      queue.Queuer
	evaluator   Evaluator
	concurrency int
	jobTimeout  time.Duration
	backoff     func() retry.Backoff
}

type Option func(*Consumer)

// WithBackoff sets the wait between failed dequeues.
func WithBackoff(backoff func() retry.Backoff) Option {
	return func(c *Consumer) {
		c.backoff = backoff
	}
}

func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(time.Second)
	b = retry.WithCappedDuration(30*time.Second, b)
	return b
}

func NewConsumer(
	queuer queue.Queuer,
	evaluator Evaluator,
	concurrency int,
	jobTimeout time.Duration,
	opts ...Option,
) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}

	c := &Consumer{
		queuer:      queuer,
		evaluator:   evaluator,
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	logger.Logger.InfoContext(ctx, "starting consumer",
		"concurrency", c.concurrency,
		"jobTimeout", c.jobTimeout,
	)

	eg, ctx := errgroup.WithContext(ctx)
	for range c.concurrency {
		eg.Go(func() error {
			return c.loop(ctx, uuid.NewString())
		})
	}

	return eg.Wait()
}

func (c *Consumer) loop(ctx context.Context, id string) error {
	b := c.backoff()
	for {
		err := c.queuer.Dequeue(ctx, c.jobTimeout, c)
		if ctx.Err() != nil {
			logger.Logger.InfoContext(ctx, "consumer stopped", "consumer", id)
			return nil
		}
		if err == nil {
			b = c.backoff()
			continue
		}

		wait, stop := b.Next()
		if stop {
			return err
		}
		logger.Logger.ErrorContext(ctx, "failed to dequeue job",
			"consumer", id,
			"error", err,
			"retryIn", wait,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// Handle decodes and evaluates one queue message. Messages that cannot be decoded are poison.
func (c *Consumer) Handle(ctx context.Context, message []byte) error {
	ctx, span := tracer.Start(ctx, "Consumer.Handle", trace.WithAttributes(
		attribute.Int("bytes", len(message)),
	))
	defer span.End()

	job, err := jobschema.Decode(message)
	if err != nil {
		logger.Logger.WarnContext(ctx, "rejected job", "error", err)
		audit.LogSubmissionRejected(rejectedContext(message), err.Error())

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode job")
		return queue.WrapPoisonError(err)
	}

	span.SetAttributes(attribute.String("room.id", job.RoomID()))
	logger.Logger.InfoContext(ctx, "evaluating job",
		"room", job.RoomID(),
		"team", job.TeamID,
		"contest", job.ContestID,
		"testCases", len(job.TestCases),
	)

	if err := c.evaluator.Evaluate(ctx, job); err != nil {
		logger.Logger.ErrorContext(ctx, "failed to evaluate job", "room", job.RoomID(), "error", err)

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to evaluate job")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "evaluated job")
	return nil
}

// rejectedContext recovers whatever identifiers a rejected payload carries.
func rejectedContext(message []byte) audit.Context {
	var ids struct {
		UserID    *string `json:"userId"`
		TeamID    *string `json:"teamId"`
		ContestID *string `json:"contestId"`
		ProblemID *string `json:"problemId"`
	}
	if err := json.Unmarshal(message, &ids); err != nil {
		return audit.Context{}
	}

	return audit.Context{
		UserID:    ids.UserID,
		TeamID:    ids.TeamID,
		ContestID: ids.ContestID,
		ProblemID: ids.ProblemID,
	}
}
