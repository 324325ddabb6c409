// Package gateway adapts the remote balance service to ports.BalanceGateway,
// adding caching, the resilience pipeline and instrumentation.
package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/preorder-gateway/internal/clients/http/balance"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	"github.com/Apurer/preorder-gateway/internal/platform/cache"
	"github.com/Apurer/preorder-gateway/internal/platform/resilience"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

const tracerName = "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/gateway"

const (
	CacheKeyProducts = "products"
	CacheKeyBalance  = "user-balance"

	MessageUnavailable = "Balance service is temporarily unavailable"
	MessageCancelled   = "Request was cancelled"
)

// RemoteClient is the subset of the balance client the gateway calls.
type RemoteClient interface {
	Products(ctx context.Context) ([]balance.Product, error)
	Balance(ctx context.Context) (*balance.Balance, error)
	CreatePreOrder(ctx context.Context, req balance.PreOrderRequest) (*balance.PreOrderData, error)
	CompletePreOrder(ctx context.Context, orderID string) (*balance.PreOrderData, error)
	CancelPreOrder(ctx context.Context, orderID string) (*balance.PreOrderData, error)
}

// Gateway implements ports.BalanceGateway.
type Gateway struct {
	client      RemoteClient
	pipeline    *resilience.Pipeline
	cache       *cache.Cache
	productsTTL time.Duration
	balanceTTL  time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     gatewayMetrics
}

type Option func(*Gateway)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = tr
	}
}

// WithMeter injects the meter used for call counters and latency.
func WithMeter(m metric.Meter) Option {
	return func(g *Gateway) {
		g.metrics = newGatewayMetrics(m)
	}
}

// WithCache replaces the default in-memory cache.
func WithCache(c *cache.Cache) Option {
	return func(g *Gateway) {
		if c != nil {
			g.cache = c
		}
	}
}

// WithTTLs sets the catalog and balance cache lifetimes.
func WithTTLs(products, balance time.Duration) Option {
	return func(g *Gateway) {
		if products > 0 {
			g.productsTTL = products
		}
		if balance > 0 {
			g.balanceTTL = balance
		}
	}
}

// New wires the gateway. The pipeline is required; cache and telemetry default
// to in-memory and no-op.
func New(client RemoteClient, pipeline *resilience.Pipeline, opts ...Option) *Gateway {
	g := &Gateway{
		client:      client,
		pipeline:    pipeline,
		productsTTL: 30 * time.Minute,
		balanceTTL:  30 * time.Minute,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:      nooptrace.NewTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if g.tracer == nil {
		g.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if g.cache == nil {
		g.cache = cache.New(cache.NewMemoryStore(), "", g.logger)
	}
	if g.pipeline == nil {
		g.pipeline = resilience.NewPipeline(resilience.DefaultConfig(), resilience.WithLogger(g.logger))
	}
	return g
}

// GetCatalog returns the product catalog, served from cache when fresh.
func (g *Gateway) GetCatalog(ctx context.Context) result.Result[[]domain.Product] {
	ctx, span := g.tracer.Start(ctx, "BalanceGateway.GetCatalog")
	defer span.End()
	g.enter(ctx, resilience.OperationProducts, "products")

	res, hit := cache.ReadThrough(ctx, g.cache, CacheKeyProducts, g.productsTTL, func(ctx context.Context) result.Result[[]domain.Product] {
		return call(ctx, g, resilience.OperationProducts, "products", func(ctx context.Context) ([]domain.Product, error) {
			products, err := g.client.Products(ctx)
			if err != nil {
				return nil, translate(err)
			}
			return toProducts(products), nil
		})
	})
	if hit {
		g.cacheHit(ctx, resilience.OperationProducts)
	}
	return finish(span, res)
}

// GetBalance returns the user's balance, served from cache when fresh.
func (g *Gateway) GetBalance(ctx context.Context) result.Result[domain.BalanceSnapshot] {
	ctx, span := g.tracer.Start(ctx, "BalanceGateway.GetBalance")
	defer span.End()
	g.enter(ctx, resilience.OperationBalance, "balance")

	res, hit := cache.ReadThrough(ctx, g.cache, CacheKeyBalance, g.balanceTTL, func(ctx context.Context) result.Result[domain.BalanceSnapshot] {
		return call(ctx, g, resilience.OperationBalance, "balance", func(ctx context.Context) (domain.BalanceSnapshot, error) {
			b, err := g.client.Balance(ctx)
			if err != nil {
				return domain.BalanceSnapshot{}, translate(err)
			}
			if b == nil {
				return domain.BalanceSnapshot{}, resilience.ErrMalformedResponse
			}
			return *toBalance(b), nil
		})
	})
	if hit {
		g.cacheHit(ctx, resilience.OperationBalance)
	}
	return finish(span, res)
}

// CreatePreOrder reserves amount under orderID. Never cached.
func (g *Gateway) CreatePreOrder(ctx context.Context, amount decimal.Decimal, orderID string) result.Result[domain.PreOrderReceipt] {
	ctx, span := g.tracer.Start(ctx, "BalanceGateway.CreatePreOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	g.enter(ctx, resilience.OperationPreOrder, "create", slog.String("order.id", orderID))

	if msgs := invalid(domain.ValidateOrderID(orderID), domain.ValidateAmount(amount)); len(msgs) > 0 {
		return finish(span, result.Failure[domain.PreOrderReceipt](http.StatusBadRequest, msgs...))
	}
	res := call(ctx, g, resilience.OperationPreOrder, "create", func(ctx context.Context) (domain.PreOrderReceipt, error) {
		data, err := g.client.CreatePreOrder(ctx, balance.PreOrderRequest{Amount: amount, OrderID: orderID})
		if err != nil {
			return domain.PreOrderReceipt{}, translate(err)
		}
		return toReceipt(data)
	})
	g.afterMutation(ctx, res)
	return finish(span, res)
}

// CompletePreOrder finalises the reservation. Never cached.
func (g *Gateway) CompletePreOrder(ctx context.Context, orderID string) result.Result[domain.PreOrderReceipt] {
	ctx, span := g.tracer.Start(ctx, "BalanceGateway.CompletePreOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	g.enter(ctx, resilience.OperationPreOrder, "complete", slog.String("order.id", orderID))

	if msgs := invalid(domain.ValidateOrderID(orderID)); len(msgs) > 0 {
		return finish(span, result.Failure[domain.PreOrderReceipt](http.StatusBadRequest, msgs...))
	}
	res := call(ctx, g, resilience.OperationPreOrder, "complete", func(ctx context.Context) (domain.PreOrderReceipt, error) {
		data, err := g.client.CompletePreOrder(ctx, orderID)
		if err != nil {
			return domain.PreOrderReceipt{}, translate(err)
		}
		return toReceipt(data)
	})
	g.afterMutation(ctx, res)
	return finish(span, res)
}

// CancelPreOrder releases the reservation. Never cached.
func (g *Gateway) CancelPreOrder(ctx context.Context, orderID string) result.Result[domain.PreOrderReceipt] {
	ctx, span := g.tracer.Start(ctx, "BalanceGateway.CancelPreOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	g.enter(ctx, resilience.OperationPreOrder, "cancel", slog.String("order.id", orderID))

	if msgs := invalid(domain.ValidateOrderID(orderID)); len(msgs) > 0 {
		return finish(span, result.Failure[domain.PreOrderReceipt](http.StatusBadRequest, msgs...))
	}
	res := call(ctx, g, resilience.OperationPreOrder, "cancel", func(ctx context.Context) (domain.PreOrderReceipt, error) {
		data, err := g.client.CancelPreOrder(ctx, orderID)
		if err != nil {
			return domain.PreOrderReceipt{}, translate(err)
		}
		return toReceipt(data)
	})
	g.afterMutation(ctx, res)
	return finish(span, res)
}

// BreakerState exposes the breaker state of op for health reporting.
func (g *Gateway) BreakerState(op resilience.Operation) string {
	return g.pipeline.BreakerState(op)
}

func call[T any](ctx context.Context, g *Gateway, op resilience.Operation, action string, fn resilience.Attempt[T]) result.Result[T] {
	start := time.Now()
	attrs := []slog.Attr{slog.String("operation", string(op)), slog.String("action", action)}

	value, err := resilience.Execute(ctx, g.pipeline, op, fn)
	outcome := resilience.Classify(err)
	elapsed := time.Since(start)
	g.metrics.record(ctx, op, outcome, elapsed)

	attrs = append(attrs, slog.String("outcome", string(outcome)), slog.Duration("elapsed", elapsed))
	if err != nil {
		res := failure[T](op, err)
		attrs = append(attrs, slog.Int("status", res.StatusCode), slog.String("error", err.Error()))
		g.logger.LogAttrs(ctx, slog.LevelError, "balance service call failed", attrs...)
		return res
	}
	g.logger.LogAttrs(ctx, slog.LevelInfo, "balance service call completed", attrs...)
	return result.Succeed(value)
}

// enter logs every gateway request, including those later served from cache.
func (g *Gateway) enter(ctx context.Context, op resilience.Operation, action string, extra ...slog.Attr) {
	attrs := append([]slog.Attr{slog.String("operation", string(op)), slog.String("action", action)}, extra...)
	g.logger.LogAttrs(ctx, slog.LevelInfo, "balance gateway request", attrs...)
}

func failure[T any](op resilience.Operation, err error) result.Result[T] {
	var remote *resilience.RemoteError
	if errors.As(err, &remote) {
		return result.Failure[T](remote.StatusCode, remote.Message)
	}
	switch resilience.Classify(err) {
	case resilience.OutcomeMalformed:
		return result.Failure[T](http.StatusBadGateway, label(op)+" response is empty or malformed")
	case resilience.OutcomeCanceled:
		return result.Failure[T](http.StatusRequestTimeout, MessageCancelled)
	default:
		return result.Failure[T](http.StatusServiceUnavailable, MessageUnavailable)
	}
}

func label(op resilience.Operation) string {
	switch op {
	case resilience.OperationProducts:
		return "Products"
	case resilience.OperationBalance:
		return "Balance"
	default:
		return "Pre-order"
	}
}

func invalid(errs ...error) []string {
	var msgs []string
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

func (g *Gateway) afterMutation(ctx context.Context, res result.Result[domain.PreOrderReceipt]) {
	if res.IsSuccessful {
		g.cache.Invalidate(ctx, CacheKeyBalance)
	}
}

func (g *Gateway) cacheHit(ctx context.Context, op resilience.Operation) {
	g.metrics.record(ctx, op, outcomeCacheHit, 0)
	g.logger.LogAttrs(ctx, slog.LevelInfo, "served from cache", slog.String("operation", string(op)))
}

func finish[T any](span trace.Span, res result.Result[T]) result.Result[T] {
	span.SetAttributes(attribute.Int("result.status_code", res.StatusCode))
	if !res.IsSuccessful {
		span.SetStatus(codes.Error, res.Message())
	}
	return res
}

var _ ports.BalanceGateway = (*Gateway)(nil)
