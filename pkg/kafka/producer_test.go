package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func headerValue(msg kafka.Message, key string) string {
	return NewHeaderCarrier(&msg.Headers).Get(key)
}

func TestNewEvent(t *testing.T) {
	event, err := NewEvent("review.created", "12", "review", "review-service", map[string]any{"coffeeId": 42})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var data map[string]int
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, 42, data["coffeeId"])
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("review.created", "1", "review", "svc", make(chan int))
	require.Error(t, err)
}

func TestUnmarshalEvent(t *testing.T) {
	event, err := NewEvent("review.deleted", "12", "review", "review-service", nil)
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	raw, err := event.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, restored.EventID)
	assert.Equal(t, "corr-1", restored.CorrelationID)

	_, err = UnmarshalEvent([]byte("{"))
	assert.Error(t, err)
}

func TestProducer_Publish(t *testing.T) {
	w := new(mockWriter)
	p := NewProducerWithWriter(w, nil, testLogger())

	event, err := NewEvent("review.updated", "12", "review", "review-service", nil)
	require.NoError(t, err)
	event.WithCorrelationID("corr-9")

	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		m := msgs[0]
		return m.Topic == "review.updated" &&
			string(m.Key) == "12" &&
			headerValue(m, "event_type") == "review.updated" &&
			headerValue(m, "correlation_id") == "corr-9"
	})).Return(nil)

	require.NoError(t, p.Publish(context.Background(), "review.updated", event))
	w.AssertExpectations(t)
}

func TestProducer_Publish_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	w := new(mockWriter)
	var captured kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).([]kafka.Message)[0]
	}).Return(nil)

	event, err := NewEvent("review.created", "1", "review", "review-service", nil)
	require.NoError(t, err)
	require.NoError(t, NewProducerWithWriter(w, nil, testLogger()).Publish(ctx, "review.created", event))

	assert.Contains(t, headerValue(captured, "traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestProducer_Publish_WriteError(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available"))

	event, err := NewEvent("review.created", "1", "review", "review-service", nil)
	require.NoError(t, err)

	err = NewProducerWithWriter(w, nil, testLogger()).Publish(context.Background(), "review.created", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to review.created")
}

func TestProducer_PingWithoutBrokers(t *testing.T) {
	p := NewProducerWithWriter(new(mockWriter), nil, testLogger())
	assert.EqualError(t, p.Ping(context.Background()), "kafka: no brokers configured")
}

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}
	c := NewHeaderCarrier(&headers)

	c.Set("a", "2")
	c.Set("b", "3")

	assert.Equal(t, "2", c.Get("a"))
	assert.Equal(t, "3", c.Get("b"))
	assert.Empty(t, c.Get("missing"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
}

func TestProducer_Close(t *testing.T) {
	w := new(mockWriter)
	w.On("Close").Return(nil)
	require.NoError(t, NewProducerWithWriter(w, nil, testLogger()).Close())
	w.AssertExpectations(t)
}
