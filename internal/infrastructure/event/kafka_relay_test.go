package event

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessage(_ context.Context, msg kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msg)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaRelay_Handle(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("SerializerTestEvent", &serializerTestEvent{})
	writer := &fakeWriter{}
	relay := NewKafkaRelay(writer, serializer, zap.NewNop())

	evt := newSerializerTestEvent()
	require.NoError(t, relay.Handle(context.Background(), evt))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, evt.AggregateID().String(), string(msg.Key))
	assert.Equal(t, "SerializerTestEvent", header(msg, HeaderEventType))
	assert.Equal(t, evt.EventID().String(), header(msg, HeaderEventID))
	assert.Equal(t, "TestAggregate", header(msg, HeaderAggregateType))

	decoded, err := serializer.Deserialize("SerializerTestEvent", msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "test data", decoded.(*serializerTestEvent).Data)
}

func TestKafkaRelay_WriteFailureIsReturned(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unavailable")}
	relay := NewKafkaRelay(writer, NewEventSerializer(), zap.NewNop())

	err := relay.Handle(context.Background(), newSerializerTestEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestKafkaRelay_EventTypesAndClose(t *testing.T) {
	writer := &fakeWriter{}
	assert.Empty(t, NewKafkaRelay(writer, NewEventSerializer(), zap.NewNop()).EventTypes())

	relay := NewKafkaRelay(writer, NewEventSerializer(), zap.NewNop(), "A", "B")
	assert.Equal(t, []string{"A", "B"}, relay.EventTypes())
	require.NoError(t, relay.Close())
	assert.True(t, writer.closed)
}

func TestNewKafkaWriter_Validates(t *testing.T) {
	_, err := NewKafkaWriter(KafkaRelayConfig{Topic: "stock-events"})
	assert.Error(t, err)

	_, err = NewKafkaWriter(KafkaRelayConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}
