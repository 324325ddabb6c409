//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
)

func TestPublisher_RoundTripThroughBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("preorders-test"),
	)
	require.NoError(t, err)
	defer func() { _ = container.Terminate(context.Background()) }()

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	writer := NewWriter(brokers, nil)
	// Synchronous here so the retry loop observes topic creation.
	writer.Async = false
	defer writer.Close()
	pub := NewPublisher(writer, "preorder.saga.events.test", nil)

	require.Eventually(t, func() bool {
		return pub.Publish(ctx, domain.SagaEvent{Name: domain.EventPreOrderReserved, OrderID: "order-1"}) == nil
	}, 30*time.Second, time.Second)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "preorder.saga.events.test",
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, domain.EventPreOrderReserved, header(msg, headerEventType))
}
