package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/logger"
)

const (
	defaultAzureEmptyWait     = 30 * time.Second
	defaultAzureMaxDeliveries = 5
	// Extra visibility so a cancelled handler can publish its failed result before redelivery
	azureVisibilityGrace = 5 * time.Second
)

// AzureQueuer reads jobs from an Azure storage queue. A message stays invisible while its
// handler runs and reappears if the handler fails or the worker dies.
type AzureQueuer struct {
	az *azqueue.QueueClient
	// Sleep between polls of an empty queue
	emptyWait time.Duration
	// Messages seen more often than this are dropped without being handled
	maxDeliveries int64
}

var _ Queuer = (*AzureQueuer)(nil)

type AzureOption func(*AzureQueuer)

func WithMaxDeliveries(n int64) AzureOption {
	return func(q *AzureQueuer) {
		q.maxDeliveries = n
	}
}

// `queueName` must exist in the storage account
func NewAzureQueuer(storageAccountName string,
	storageAccountKey string,
	queueServiceURL string,
	queueName string,
	emptyWait time.Duration,
	opts ...AzureOption,
) (*AzureQueuer, error) {
	azureCred, err := azqueue.NewSharedKeyCredential(storageAccountName, storageAccountKey)
	if err != nil {
		return nil, err
	}
	serviceClient, err := azqueue.NewServiceClientWithSharedKeyCredential(
		queueServiceURL,
		azureCred,
		&azqueue.ClientOptions{
			ClientOptions: policy.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries: 5,
					RetryDelay: 500 * time.Millisecond,
				},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	if emptyWait <= 0 {
		emptyWait = defaultAzureEmptyWait
	}

	q := &AzureQueuer{
		az:            serviceClient.NewQueueClient(queueName),
		emptyWait:     emptyWait,
		maxDeliveries: defaultAzureMaxDeliveries,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

func (q *AzureQueuer) Close() error {
	return nil
}

func (q *AzureQueuer) Enqueue(ctx context.Context, message any) error {
	ctx, span := tracer.Start(ctx, "Azure.Enqueue")
	defer span.End()

	msgJSON, err := json.Marshal(message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return err
	}

	span.AddEvent("serialized_message", trace.WithAttributes(
		attribute.Int("bytes", len(msgJSON)),
	))

	_, err = q.az.EnqueueMessage(ctx, string(msgJSON), &azqueue.EnqueueMessageOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued message")
	return nil
}

// next polls until a message is available or ctx is done.
func (q *AzureQueuer) next(ctx context.Context, visibility time.Duration) (*azqueue.DequeuedMessage, error) {
	visibilitySecs := int32(visibility.Seconds())
	for {
		resp, err := q.az.DequeueMessage(ctx, &azqueue.DequeueMessageOptions{
			VisibilityTimeout: &visibilitySecs,
		})
		if err != nil {
			return nil, err
		}

		switch len(resp.Messages) {
		case 1:
			return resp.Messages[0], nil
		case 0:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(q.emptyWait):
			}
		default:
			return nil, fmt.Errorf("unexpected number of messages: %d", len(resp.Messages))
		}
	}
}

func (q *AzureQueuer) Dequeue(
	ctx context.Context,
	timeout time.Duration,
	handler MessageHandler,
) error {
	ctx, span := tracer.Start(ctx, "Azure.Dequeue", trace.WithAttributes(
		attribute.Int64("timeoutSecs", int64(timeout.Seconds())),
	))
	defer span.End()

	msg, err := q.next(ctx, timeout+azureVisibilityGrace)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to dequeue message")
		return err
	}

	var deliveries int64
	if msg.DequeueCount != nil {
		deliveries = *msg.DequeueCount
	}
	span.AddEvent("got_message", trace.WithAttributes(
		attribute.String("message.id", *msg.MessageID),
		attribute.Int64("deliveries", deliveries),
	))

	// the message must leave the queue even when the worker is shutting down
	cleanupCtx := context.WithoutCancel(ctx)

	if deliveries > q.maxDeliveries {
		logger.Logger.WarnContext(ctx, "dropping message delivered too often",
			"message", *msg.MessageID,
			"deliveries", deliveries,
		)
	} else {
		handlerCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		handlerErr := handler.Handle(handlerCtx, []byte(*msg.MessageText))
		if handlerErr != nil && !IsPoison(handlerErr) {
			// let the visibility timeout expire and the message go back to the queue
			span.AddEvent("failed_message_handler", trace.WithAttributes(
				attribute.String("error", handlerErr.Error()),
			))
			logger.Logger.WarnContext(ctx, "message will be redelivered after handler failure",
				"message", *msg.MessageID,
				"deliveries", deliveries,
				"error", handlerErr,
			)
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "dequeued message but failed to handle")
			return nil
		}
	}

	_, err = q.az.DeleteMessage(cleanupCtx, *msg.MessageID, *msg.PopReceipt, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dequeued message")
	return nil
}
