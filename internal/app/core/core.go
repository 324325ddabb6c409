// Package core assembles the pre-order components shared by the API, the
// worker, and the operator CLI.
package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Apurer/preorder-gateway/internal/clients/http/balance"
	preorderkafka "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/events/kafka"
	preordergateway "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/gateway"
	preordermemory "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/memory"
	preorderpostgres "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/persistence/postgres"
	preorderapp "github.com/Apurer/preorder-gateway/internal/domains/preorders/application"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	"github.com/Apurer/preorder-gateway/internal/platform/cache"
	"github.com/Apurer/preorder-gateway/internal/platform/migrations"
	platformobservability "github.com/Apurer/preorder-gateway/internal/platform/observability"
	platformpostgres "github.com/Apurer/preorder-gateway/internal/platform/postgres"
	"github.com/Apurer/preorder-gateway/internal/platform/resilience"
)

// Components are the wired collaborators of the pre-order saga.
type Components struct {
	Logger       *slog.Logger
	Policy       resilience.Config
	Pipeline     *resilience.Pipeline
	Gateway      *preordergateway.Gateway
	Outbox       ports.CompensationOutbox
	Journal      ports.SagaJournal
	Events       ports.EventPublisher
	Compensation *preorderapp.CompensationHandler
	// DurableOutbox is false when tasks live in process memory and only this
	// process can relay them.
	DurableOutbox bool

	client      *balance.Client
	cache       *cache.Cache
	instruments *platformobservability.Instruments
	cfg         Config
	closers     []func()
}

// compensationParkMargin leaves room to park a failed cancellation after the
// pipeline has spent its budget.
const compensationParkMargin = 10 * time.Second

// Build wires the gateway, stores, and compensation handler. Optional backends
// that are not configured or unreachable fall back to in-memory or no-op
// implementations with a Warn log.
func Build(ctx context.Context, cfg Config, instruments *platformobservability.Instruments) (*Components, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if instruments != nil && instruments.Logger != nil {
		logger = instruments.Logger
	}
	c := &Components{Logger: logger, instruments: instruments, cfg: cfg}

	policy := resilience.DefaultConfig()
	if cfg.ResilienceConfigFile != "" {
		loaded, err := resilience.LoadConfigFile(cfg.ResilienceConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load resilience config: %w", err)
		}
		policy = loaded
	}
	c.Policy = policy
	c.Pipeline = c.newPipeline(policy)

	client, err := balance.NewClient(cfg.BalanceServiceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("balance client: %w", err)
	}
	c.client = client
	c.cache = c.buildCache(ctx, cfg)
	c.Gateway = c.newGateway(c.Pipeline)

	c.buildStores(ctx, cfg)
	c.buildEvents(cfg)

	c.Compensation = c.newCompensation(c.Gateway)
	return c, nil
}

// ActivityCompensation returns a compensation handler whose cancellation makes
// a single remote attempt. Temporal activities use it so the retry policy of
// the workflow is the only retry loop around a cancellation.
func (c *Components) ActivityCompensation() *preorderapp.CompensationHandler {
	return c.newCompensation(c.newGateway(c.newPipeline(c.Policy.SingleAttempt())))
}

// InlineCompensationTimeout bounds an in-process compensation: the full
// pre-order retry budget of the pipeline plus time to park the task.
func (c *Components) InlineCompensationTimeout() time.Duration {
	return c.Policy.CallBudget(resilience.OperationPreOrder) + compensationParkMargin
}

func (c *Components) newPipeline(policy resilience.Config) *resilience.Pipeline {
	return resilience.NewPipeline(policy,
		resilience.WithLogger(c.Logger),
		resilience.WithMeter(c.instruments.Meter("internal.platform.resilience")),
	)
}

func (c *Components) newGateway(pipeline *resilience.Pipeline) *preordergateway.Gateway {
	return preordergateway.New(c.client, pipeline,
		preordergateway.WithLogger(c.Logger),
		preordergateway.WithTracer(c.instruments.Tracer("internal.preorders.gateway")),
		preordergateway.WithMeter(c.instruments.Meter("internal.preorders.gateway")),
		preordergateway.WithCache(c.cache),
		preordergateway.WithTTLs(c.cfg.ProductsTTL, c.cfg.BalanceTTL),
	)
}

func (c *Components) newCompensation(gateway ports.BalanceGateway) *preorderapp.CompensationHandler {
	return preorderapp.NewCompensationHandler(gateway,
		preorderapp.WithCompensationLogger(c.Logger),
		preorderapp.WithCompensationOutbox(c.Outbox),
		preorderapp.WithCompensationJournal(c.Journal),
		preorderapp.WithCompensationEvents(c.Events),
	)
}

// Relay builds the outbox relay polling at the configured interval.
func (c *Components) Relay(cfg Config) *preorderapp.CompensationRelay {
	relayCfg := preorderapp.DefaultRelayConfig()
	relayCfg.Interval = cfg.OutboxPollInterval
	return preorderapp.NewCompensationRelay(c.Outbox, c.Compensation, relayCfg, c.Logger)
}

// Close releases backend connections in reverse order of creation.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Components) buildCache(ctx context.Context, cfg Config) *cache.Cache {
	const service = "balance-gateway"
	if cfg.RedisAddr == "" {
		c.Logger.Warn("REDIS_ADDR not set, caching balance reads in memory")
		return cache.New(cache.NewMemoryStore(), service, c.Logger)
	}
	store, err := cache.DialRedis(ctx, cfg.RedisAddr)
	if err != nil {
		c.Logger.Warn("failed to connect to redis, caching balance reads in memory", slog.String("error", err.Error()))
		return cache.New(cache.NewMemoryStore(), service, c.Logger)
	}
	c.closers = append(c.closers, func() { _ = store.Close() })
	c.Logger.Info("balance cache configured with redis", slog.String("addr", cfg.RedisAddr))
	return cache.New(store, service, c.Logger)
}

func (c *Components) buildStores(ctx context.Context, cfg Config) {
	if cfg.PostgresDSN == "" {
		c.Logger.Warn("POSTGRES_DSN not set, compensation outbox kept in memory and saga journal disabled")
		c.Outbox = preordermemory.NewOutbox()
		return
	}
	db, err := platformpostgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		c.Logger.Warn("failed to connect to postgres, compensation outbox kept in memory", slog.String("error", err.Error()))
		c.Outbox = preordermemory.NewOutbox()
		return
	}
	if err := migrations.Run(db); err != nil {
		c.Logger.Warn("postgres migrations failed", slog.String("error", err.Error()))
	}
	if sqlDB, err := db.DB(); err == nil {
		c.closers = append(c.closers, func() { _ = sqlDB.Close() })
	}
	c.Outbox = preorderpostgres.NewOutbox(db)
	c.Journal = preorderpostgres.NewJournal(db)
	c.DurableOutbox = true
	c.Logger.Info("compensation outbox and saga journal configured with postgres")
}

func (c *Components) buildEvents(cfg Config) {
	if len(cfg.KafkaBrokers) == 0 {
		c.Logger.Warn("KAFKA_BROKERS not set, saga events are not published")
		return
	}
	writer := preorderkafka.NewWriter(cfg.KafkaBrokers, c.Logger)
	c.closers = append(c.closers, func() { _ = writer.Close() })
	c.Events = preorderkafka.NewPublisher(writer, cfg.KafkaTopic, c.Logger)
	c.Logger.Info("saga events published to kafka", slog.String("topic", cfg.KafkaTopic))
}
