package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	"github.com/Apurer/preorder-gateway/internal/platform/observability"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

// RelayConfig tunes the compensation outbox relay.
type RelayConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRelayConfig polls every 10s and orphans a task after 10 attempts.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Interval:    10 * time.Second,
		BatchSize:   50,
		MaxAttempts: 10,
		BaseBackoff: 5 * time.Second,
	}
}

// CompensationRelay retries parked compensations until they succeed or run
// out of attempts.
type CompensationRelay struct {
	outbox  ports.CompensationOutbox
	handler *CompensationHandler
	cfg     RelayConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewCompensationRelay wires the relay. Zero config fields take defaults.
func NewCompensationRelay(outbox ports.CompensationOutbox, handler *CompensationHandler, cfg RelayConfig, logger *slog.Logger) *CompensationRelay {
	def := DefaultRelayConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &CompensationRelay{outbox: outbox, handler: handler, cfg: cfg, logger: logger, now: handler.recorder.now}
}

// Run polls the outbox until ctx is cancelled.
func (r *CompensationRelay) Run(ctx context.Context) error {
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("compensation relay stopping")
			return nil
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("compensation relay batch failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce processes one batch of due tasks and returns how many succeeded.
func (r *CompensationRelay) RunOnce(ctx context.Context) (int, error) {
	tasks, err := r.outbox.Due(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("load due compensations: %w", err)
	}
	done := 0
	var errs []error
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		ok, err := r.process(ctx, task)
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			done++
		}
	}
	return done, errors.Join(errs...)
}

// Retry requeues a task, typically an orphaned one, and attempts it now.
func (r *CompensationRelay) Retry(ctx context.Context, orderID string) (*domain.CompensationTask, result.Result[domain.PreOrderReceipt], error) {
	task, err := r.outbox.Get(ctx, orderID)
	if err != nil {
		return nil, result.Result[domain.PreOrderReceipt]{}, err
	}
	task.Requeue(r.now())
	res, err := r.attempt(ctx, task)
	return task, res, err
}

func (r *CompensationRelay) process(ctx context.Context, task *domain.CompensationTask) (bool, error) {
	res, err := r.attempt(ctx, task)
	return res.IsSuccessful, err
}

func (r *CompensationRelay) attempt(ctx context.Context, task *domain.CompensationTask) (result.Result[domain.PreOrderReceipt], error) {
	res := r.handler.Cancel(ctx, task.OrderID)
	now := r.now()
	switch {
	case res.IsSuccessful:
		task.MarkDone(now)
	case permanent(res):
		task.RecordFailure(res.Message(), now, r.cfg.BaseBackoff, 1)
	default:
		task.RecordFailure(res.Message(), now, r.cfg.BaseBackoff, r.cfg.MaxAttempts)
	}
	if task.Status == domain.TaskOrphaned {
		r.logger.LogAttrs(ctx, observability.LevelCritical, "compensation retries exhausted, reservation orphaned",
			slog.String("order.id", task.OrderID),
			slog.Int("attempts", task.Attempts),
			slog.String("error", task.LastError),
		)
	} else if !res.IsSuccessful {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "compensation retry failed",
			slog.String("order.id", task.OrderID),
			slog.Int("attempts", task.Attempts),
			slog.Time("next_attempt_at", task.NextAttemptAt),
		)
	}
	if err := r.outbox.Save(ctx, task); err != nil {
		return res, fmt.Errorf("save compensation %s: %w", task.OrderID, err)
	}
	return res, nil
}
