package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

const tracerName = "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/observability/service"

// Service decorates the pre-order saga with tracing, logging, and metrics.
type Service struct {
	inner   ports.OrderService
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core saga.
func New(inner ports.OrderService, opts ...Option) ports.OrderService {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// CreateOrder prices and reserves a pre-order with instrumentation.
func (s *Service) CreateOrder(ctx context.Context, lines []domain.OrderLine) result.Result[domain.PreOrderReceipt] {
	ctx, span := s.startSpan(ctx, "Saga.CreateOrder", attribute.Int("order.lines", len(lines)))
	defer span.End()

	s.logInfo(ctx, "creating pre-order", slog.Int("order.lines", len(lines)))
	res := s.inner.CreateOrder(ctx, lines)
	s.metrics.record(ctx, s.metrics.created, res)
	if !res.IsSuccessful {
		return s.handleFailure(ctx, span, res, "pre-order creation failed")
	}
	span.SetAttributes(attribute.String("order.id", res.Data.OrderID()))
	s.logInfo(ctx, "pre-order reserved", slog.String("order.id", res.Data.OrderID()))
	return res
}

// CompleteOrder finalises a reservation with instrumentation.
func (s *Service) CompleteOrder(ctx context.Context, orderID string) result.Result[domain.PreOrderReceipt] {
	ctx, span := s.startSpan(ctx, "Saga.CompleteOrder", attribute.String("order.id", orderID))
	defer span.End()

	s.logInfo(ctx, "completing pre-order", slog.String("order.id", orderID))
	res := s.inner.CompleteOrder(ctx, orderID)
	s.metrics.record(ctx, s.metrics.completed, res)
	if !res.IsSuccessful {
		return s.handleFailure(ctx, span, res, "pre-order completion failed", slog.String("order.id", orderID))
	}
	s.logInfo(ctx, "pre-order completed", slog.String("order.id", orderID))
	return res
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

// handleFailure logs client rejections at Warn and everything else at Error.
func (s *Service) handleFailure(ctx context.Context, span trace.Span, res result.Result[domain.PreOrderReceipt], msg string, attrs ...slog.Attr) result.Result[domain.PreOrderReceipt] {
	message := res.Message()
	span.SetAttributes(attribute.Int("result.status_code", res.StatusCode))
	level := slog.LevelWarn
	if res.StatusCode >= 500 {
		level = slog.LevelError
		span.RecordError(res.Err())
		span.SetStatus(codes.Error, message)
	}
	if s.logger != nil {
		attrs = append(attrs, slog.Int("status", res.StatusCode), slog.String("error", message))
		s.logger.LogAttrs(ctx, level, msg, attrs...)
	}
	return res
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	created   metric.Int64Counter
	completed metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	created, _ := m.Int64Counter("preorders.saga.created", metric.WithDescription("Pre-order creation attempts by outcome"))
	completed, _ := m.Int64Counter("preorders.saga.completed", metric.WithDescription("Pre-order completion attempts by outcome"))
	return serviceMetrics{created: created, completed: completed}
}

func (m serviceMetrics) record(ctx context.Context, counter metric.Int64Counter, res result.Result[domain.PreOrderReceipt]) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", res.IsSuccessful),
		attribute.Int("status_code", res.StatusCode),
	))
}

var _ ports.OrderService = (*Service)(nil)
