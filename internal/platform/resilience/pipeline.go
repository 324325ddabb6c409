// Package resilience wraps outbound calls with bulkhead, circuit breaker,
// retry and per-attempt timeout policies, applied in that order from the
// outside in.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attempt performs a single remote call.
type Attempt[T any] func(ctx context.Context) (T, error)

// Pipeline owns the process-wide bulkhead and per-operation breakers. It is
// safe for concurrent use.
type Pipeline struct {
	cfg      Config
	bulkhead *Bulkhead
	logger   *slog.Logger
	metrics  pipelineMetrics

	mu       sync.Mutex
	breakers map[Operation]*gobreaker.CircuitBreaker[any]
}

type Option func(*Pipeline)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMeter injects the meter used for retry, breaker and bulkhead counters.
func WithMeter(m metric.Meter) Option {
	return func(p *Pipeline) {
		p.metrics = newPipelineMetrics(m)
	}
}

// NewPipeline builds a pipeline from cfg. Invalid fields fall back to DefaultConfig values.
func NewPipeline(cfg Config, opts ...Option) *Pipeline {
	cfg = withDefaults(cfg)
	p := &Pipeline{
		cfg:      cfg,
		bulkhead: NewBulkhead(cfg.MaxConcurrent, cfg.MaxQueue),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		breakers: map[Operation]*gobreaker.CircuitBreaker[any]{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for _, op := range []Operation{OperationProducts, OperationBalance, OperationPreOrder} {
		p.breakers[op] = p.newBreaker(op)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// BreakerState reports "closed", "open" or "half-open" for op.
func (p *Pipeline) BreakerState(op Operation) string {
	return p.breaker(op).State().String()
}

// Execute runs attempt through bulkhead -> breaker -> retry -> timeout.
// The returned error is classified with Classify.
func Execute[T any](ctx context.Context, p *Pipeline, op Operation, attempt Attempt[T]) (T, error) {
	var zero T
	release, err := p.bulkhead.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrBulkheadRejected) {
			p.metrics.recordRejection(ctx, op)
			p.logger.LogAttrs(ctx, slog.LevelWarn, "bulkhead limit reached, request rejected", slog.String("operation", string(op)))
		}
		return zero, err
	}
	defer release()

	out, err := p.breaker(op).Execute(func() (any, error) {
		return retry(ctx, p, op, attempt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "circuit breaker rejected call",
			slog.String("operation", string(op)),
			slog.String("state", p.BreakerState(op)),
		)
		return zero, fmt.Errorf("%s: %w", op, ErrCircuitOpen)
	}
	value, ok := out.(T)
	if !ok {
		value = zero
	}
	return value, err
}

func retry[T any](ctx context.Context, p *Pipeline, op Operation, attempt Attempt[T]) (T, error) {
	var value T
	attemptNo := 0
	operation := func() error {
		attemptNo++
		v, err := runAttempt(ctx, p.cfg.AttemptTimeout, attempt)
		if err == nil {
			value = v
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(fmt.Errorf("%w (last attempt: %v)", ctxErr, err))
		}
		if !Classify(err).Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		p.metrics.recordRetry(ctx, op, Classify(err))
		p.logger.LogAttrs(ctx, slog.LevelWarn, "retrying balance service call",
			slog.String("operation", string(op)),
			slog.Int("attempt", attemptNo),
			slog.Duration("wait", wait),
			slog.String("outcome", string(Classify(err))),
			slog.String("error", err.Error()),
		)
	}
	err := backoff.RetryNotify(operation, p.newBackOff(ctx, op), notify)
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt Attempt[T]) (T, error) {
	if timeout <= 0 {
		return attempt(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := attempt(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return v, fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, timeout, err)
	}
	return v, err
}

func (p *Pipeline) newBackOff(ctx context.Context, op Operation) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = p.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.cfg.RetriesFor(op))), ctx)
}

func (p *Pipeline) breaker(op Operation) *gobreaker.CircuitBreaker[any] {
	p.mu.Lock()
	defer p.mu.Unlock()
	cb, ok := p.breakers[op]
	if !ok {
		cb = p.newBreaker(op)
		p.breakers[op] = cb
	}
	return cb
}

func (p *Pipeline) newBreaker(op Operation) *gobreaker.CircuitBreaker[any] {
	threshold := uint32(p.cfg.FailureThreshold)
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        string(op),
		MaxRequests: 1,
		Timeout:     p.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller walking away says nothing about the remote service: the
		// call neither resets the failure streak nor settles a half-open trial.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.metrics.recordTransition(context.Background(), Operation(name), to)
			level := slog.LevelInfo
			if to == gobreaker.StateOpen {
				level = slog.LevelWarn
			}
			p.logger.LogAttrs(context.Background(), level, "circuit breaker state changed",
				slog.String("operation", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
				slog.Duration("cooldown", p.cfg.Cooldown),
			)
		},
	})
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.MaxQueue < 0 {
		cfg.MaxQueue = def.MaxQueue
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.AttemptTimeout < 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.ReadRetries < 0 {
		cfg.ReadRetries = def.ReadRetries
	}
	if cfg.MutationRetries < 0 {
		cfg.MutationRetries = def.MutationRetries
	}
	return cfg
}

type pipelineMetrics struct {
	retries     metric.Int64Counter
	transitions metric.Int64Counter
	rejections  metric.Int64Counter
}

func newPipelineMetrics(m metric.Meter) pipelineMetrics {
	if m == nil {
		return pipelineMetrics{}
	}
	retries, _ := m.Int64Counter("resilience.retries", metric.WithDescription("Retried remote call attempts"))
	transitions, _ := m.Int64Counter("resilience.breaker.transitions", metric.WithDescription("Circuit breaker state transitions"))
	rejections, _ := m.Int64Counter("resilience.bulkhead.rejections", metric.WithDescription("Calls rejected by the bulkhead"))
	return pipelineMetrics{retries: retries, transitions: transitions, rejections: rejections}
}

func (m pipelineMetrics) recordRetry(ctx context.Context, op Operation, outcome Outcome) {
	if m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("outcome", string(outcome)),
	))
}

func (m pipelineMetrics) recordTransition(ctx context.Context, op Operation, to gobreaker.State) {
	if m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("state", to.String()),
	))
}

func (m pipelineMetrics) recordRejection(ctx context.Context, op Operation) {
	if m.rejections == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", string(op))))
}
