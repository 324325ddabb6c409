package gateway

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Apurer/preorder-gateway/internal/platform/resilience"
)

const outcomeCacheHit resilience.Outcome = "cache_hit"

type gatewayMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

func newGatewayMetrics(m metric.Meter) gatewayMetrics {
	if m == nil {
		return gatewayMetrics{}
	}
	calls, _ := m.Int64Counter("balance.gateway.calls", metric.WithDescription("Balance gateway calls by operation and outcome"))
	duration, _ := m.Float64Histogram("balance.gateway.duration", metric.WithDescription("Balance gateway call latency"), metric.WithUnit("ms"))
	return gatewayMetrics{calls: calls, duration: duration}
}

func (m gatewayMetrics) record(ctx context.Context, op resilience.Operation, outcome resilience.Outcome, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("outcome", string(outcome)),
	)
	if m.calls != nil {
		m.calls.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
}
