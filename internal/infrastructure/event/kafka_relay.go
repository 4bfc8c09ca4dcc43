package event

import (
	"context"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Kafka message header keys set on every relayed event
const (
	HeaderEventType     = "event_type"
	HeaderEventID       = "event_id"
	HeaderAggregateType = "aggregate_type"
)

// MessageWriter writes one message to a topic
type MessageWriter interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaRelayConfig configures the Kafka relay
type KafkaRelayConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// KafkaRelay forwards delivered domain events to a Kafka topic so that other
// services can follow stock changes. It subscribes to the in-memory bus like any
// other handler; a failed write fails the outbox delivery, which retries it.
type KafkaRelay struct {
	writer     MessageWriter
	serializer *EventSerializer
	eventTypes []string
	logger     *zap.Logger
}

// NewKafkaRelay creates a relay on top of writer. eventTypes limits what is
// forwarded; empty means every event.
func NewKafkaRelay(writer MessageWriter, serializer *EventSerializer, logger *zap.Logger, eventTypes ...string) *KafkaRelay {
	return &KafkaRelay{
		writer:     writer,
		serializer: serializer,
		eventTypes: eventTypes,
		logger:     logger,
	}
}

// NewKafkaWriter builds a traced segmentio writer for cfg
func NewKafkaWriter(cfg KafkaRelayConfig) (MessageWriter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka relay requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka relay requires a topic")
	}
	base := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(otel.GetTracerProvider()),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			attribute.String("messaging.destination.name", cfg.Topic),
			attribute.String("messaging.kafka.client_id", cfg.ClientID),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka writer: %w", err)
	}
	return writer, nil
}

// Handle implements shared.EventHandler
func (r *KafkaRelay) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := r.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", event.EventType(), err)
	}

	// Keyed by aggregate so one location's or order's events stay ordered within a partition
	msg := kafka.Message{
		Key:   []byte(event.AggregateID().String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType())},
			{Key: HeaderEventID, Value: []byte(event.EventID().String())},
			{Key: HeaderAggregateType, Value: []byte(event.AggregateType())},
		},
	}
	if err := r.writer.WriteMessage(ctx, msg); err != nil {
		r.logger.Error("Failed to relay event to kafka",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
		return fmt.Errorf("relay %s: %w", event.EventType(), err)
	}
	return nil
}

// EventTypes implements shared.EventHandler
func (r *KafkaRelay) EventTypes() []string {
	return r.eventTypes
}

// Close closes the underlying writer
func (r *KafkaRelay) Close() error {
	return r.writer.Close()
}

var _ shared.EventHandler = (*KafkaRelay)(nil)
