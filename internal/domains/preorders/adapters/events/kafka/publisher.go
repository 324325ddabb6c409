package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
)

// DefaultTopic receives saga events when no topic is configured.
const DefaultTopic = "preorder.saga.events"

const headerEventType = "event_type"

var _ ports.EventPublisher = (*Publisher)(nil)

// Producer is the subset of kafka.Writer the publisher needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher writes saga events to a Kafka topic keyed by order id.
type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// WriterBatchTimeout bounds how long a saga event waits for batch companions.
const WriterBatchTimeout = 10 * time.Millisecond

// NewWriter builds an asynchronous kafka.Writer that waits for all in-sync
// replicas. WriteMessages returns without waiting for the broker, so saga
// requests never block on Kafka; delivery failures are logged on completion.
func NewWriter(brokers []string, logger *slog.Logger) *kafka.Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           WriterBatchTimeout,
		Async:                  true,
		Completion:             deliveryReport(logger),
	}
}

func deliveryReport(logger *slog.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		for _, msg := range msgs {
			logger.Error("saga event delivery failed",
				slog.String("event", header(msg, headerEventType)),
				slog.String("order.id", string(msg.Key)),
				slog.String("topic", msg.Topic),
				slog.String("error", err.Error()),
			)
		}
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// NewPublisher wires a publisher. A nil logger discards output.
func NewPublisher(producer Producer, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Publish serialises the event and writes it with trace context headers.
func (p *Publisher) Publish(ctx context.Context, event domain.SagaEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode saga event %s: %w", event.Name, err)
	}
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.OrderID),
		Value:   payload,
		Headers: injectHeaders(ctx, []kafka.Header{{Key: headerEventType, Value: []byte(event.Name)}}),
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("saga event dispatch failed",
			slog.String("event", event.Name),
			slog.String("saga.id", event.SagaID),
			slog.String("error", err.Error()),
		)
		return err
	}
	p.logger.Debug("saga event dispatched", slog.String("event", event.Name), slog.String("order.id", event.OrderID))
	return nil
}

func injectHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
