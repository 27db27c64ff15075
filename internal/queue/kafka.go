package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Kafka topic backed queuer
//
// Offsets are committed once a message is handled. A non poison handler failure produces the
// message again at the end of the topic before committing.
type KafkaQueuer struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

var _ Queuer = (*KafkaQueuer)(nil)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewKafkaQueuer(cfg KafkaConfig) (*KafkaQueuer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10 << 20,
		MaxWait:  time.Second,
	})

	return &KafkaQueuer{writer: writer, reader: reader}, nil
}

func (q *KafkaQueuer) Close() error {
	return errors.Join(q.reader.Close(), q.writer.Close())
}

func (q *KafkaQueuer) Enqueue(ctx context.Context, message any) error {
	ctx, span := tracer.Start(ctx, "Kafka.Enqueue", trace.WithAttributes(
		attribute.String("topic", q.writer.Topic),
	))
	defer span.End()

	msgJSON, err := json.Marshal(message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return err
	}

	carrier := HeaderCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	if err := q.writer.WriteMessages(ctx, kafka.Message{Value: msgJSON, Headers: carrier}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued message")
	return nil
}

func (q *KafkaQueuer) Dequeue(
	ctx context.Context,
	timeout time.Duration,
	handler MessageHandler,
) error {
	ctx, span := tracer.Start(ctx, "Kafka.Dequeue", trace.WithAttributes(
		attribute.String("topic", q.writer.Topic),
		attribute.Int64("timeoutSecs", int64(timeout.Seconds())),
	))
	defer span.End()

	msg, err := q.reader.FetchMessage(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to dequeue message")
		return err
	}

	span.AddEvent("got_message", trace.WithAttributes(
		attribute.Int("partition", msg.Partition),
		attribute.Int64("offset", msg.Offset),
	))

	carrier := HeaderCarrier(msg.Headers)
	producerSpan := trace.SpanContextFromContext(
		otel.GetTextMapPropagator().Extract(context.Background(), &carrier),
	)
	if producerSpan.IsValid() {
		span.AddLink(trace.Link{SpanContext: producerSpan})
	}

	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	handlerErr := handler.Handle(handlerCtx, msg.Value)

	cleanupCtx := context.WithoutCancel(ctx)

	if handlerErr != nil && !IsPoison(handlerErr) {
		span.AddEvent("failed_message_handler", trace.WithAttributes(
			attribute.String("error", handlerErr.Error()),
		))
		requeued := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: msg.Headers}
		if err := q.writer.WriteMessages(cleanupCtx, requeued); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to requeue message")
			return err
		}
	}

	if err := q.reader.CommitMessages(cleanupCtx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dequeued message")
	return nil
}

// HeaderCarrier carries trace context from the producer to the consumer in kafka headers.
type HeaderCarrier []kafka.Header

var _ propagation.TextMapCarrier = (*HeaderCarrier)(nil)

func (c *HeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *HeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}
