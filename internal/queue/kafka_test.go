package queue_test

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/queue"
)

func TestNewKafkaQueuer(t *testing.T) {
	t.Run("NoBrokers", func(t *testing.T) {
		_, err := queue.NewKafkaQueuer(queue.KafkaConfig{Topic: "submissionProblem"})
		require.Error(t, err)
	})

	t.Run("NoTopic", func(t *testing.T) {
		_, err := queue.NewKafkaQueuer(queue.KafkaConfig{Brokers: []string{"localhost:9092"}})
		require.Error(t, err)
	})

	t.Run("Valid", func(t *testing.T) {
		q, err := queue.NewKafkaQueuer(queue.KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "submissionProblem",
			GroupID: "judge",
		})
		require.NoError(t, err)
		require.NoError(t, q.Close())
	})
}

func TestHeaderCarrier(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	prop := propagation.TraceContext{}
	carrier := queue.HeaderCarrier{{Key: "other", Value: []byte("kept")}}
	prop.Inject(ctx, &carrier)

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", carrier.Get("traceparent"))
	assert.ElementsMatch(t, []string{"other", "traceparent"}, carrier.Keys())

	headers := []kafka.Header(carrier)
	received := queue.HeaderCarrier(headers)
	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), &received))
	assert.Equal(t, traceID, extracted.TraceID())
	assert.Equal(t, spanID, extracted.SpanID())

	carrier.Set("other", "replaced")
	assert.Equal(t, "replaced", carrier.Get("other"))
	assert.Len(t, carrier, 2)
}
