package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	"github.com/Apurer/preorder-gateway/internal/platform/observability"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

// CompensationHandler releases reservations whose completion failed.
type CompensationHandler struct {
	gateway  ports.BalanceGateway
	outbox   ports.CompensationOutbox
	recorder *recorder
}

type CompensationOption func(*CompensationHandler)

// WithCompensationLogger injects a slog logger.
func WithCompensationLogger(logger *slog.Logger) CompensationOption {
	return func(h *CompensationHandler) {
		if logger != nil {
			h.recorder.logger = logger
		}
	}
}

// WithCompensationOutbox parks failed compensations for later retries.
func WithCompensationOutbox(outbox ports.CompensationOutbox) CompensationOption {
	return func(h *CompensationHandler) {
		h.outbox = outbox
	}
}

// WithCompensationJournal records compensation transitions.
func WithCompensationJournal(journal ports.SagaJournal) CompensationOption {
	return func(h *CompensationHandler) {
		h.recorder.journal = journal
	}
}

// WithCompensationEvents publishes compensation outcomes.
func WithCompensationEvents(events ports.EventPublisher) CompensationOption {
	return func(h *CompensationHandler) {
		h.recorder.events = events
	}
}

// WithCompensationClock overrides the time source.
func WithCompensationClock(now func() time.Time) CompensationOption {
	return func(h *CompensationHandler) {
		if now != nil {
			h.recorder.now = now
		}
	}
}

// NewCompensationHandler wires the handler.
func NewCompensationHandler(gateway ports.BalanceGateway, opts ...CompensationOption) *CompensationHandler {
	h := &CompensationHandler{gateway: gateway, recorder: newRecorder()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Compensate cancels the reservation once. On failure the reservation is
// reported at critical level and parked in the outbox.
func (h *CompensationHandler) Compensate(ctx context.Context, orderID, reason string) result.Result[domain.PreOrderReceipt] {
	res := h.Cancel(ctx, orderID)
	if res.IsSuccessful {
		return res
	}
	h.orphaned(ctx, orderID, res)
	_ = h.Park(ctx, orderID, reason, res)
	return res
}

// Cancel runs a single cancellation and records its outcome without parking.
func (h *CompensationHandler) Cancel(ctx context.Context, orderID string) result.Result[domain.PreOrderReceipt] {
	run := h.recorder.begin(ctx, orderID)
	res := h.gateway.CancelPreOrder(ctx, orderID)
	if res.IsSuccessful {
		h.recorder.logger.LogAttrs(ctx, slog.LevelInfo, "pre-order compensation completed", slog.String("order.id", orderID))
		run.finish(ctx, domain.SagaCompensated, domain.EventPreOrderCompensated, res.StatusCode, nil)
		return res
	}
	run.finish(ctx, domain.SagaCompensationFailed, domain.EventPreOrderCompensationFailed, res.StatusCode, res.ErrorMessages)
	return res
}

// Park stores a failed compensation in the outbox. Permanent remote
// rejections are stored as orphaned so only an operator retries them.
func (h *CompensationHandler) Park(ctx context.Context, orderID, reason string, failed result.Result[domain.PreOrderReceipt]) error {
	if h.outbox == nil {
		return nil
	}
	task, err := domain.NewCompensationTask(orderID, reason, h.recorder.now())
	if err != nil {
		return err
	}
	task.LastError = failed.Message()
	if permanent(failed) {
		task.Status = domain.TaskOrphaned
	}
	if err := h.outbox.Enqueue(ctx, task); err != nil {
		h.recorder.logger.LogAttrs(ctx, observability.LevelCritical, "compensation outbox enqueue failed",
			slog.String("order.id", orderID),
			slog.String("error", err.Error()),
		)
		return err
	}
	h.recorder.logger.LogAttrs(ctx, slog.LevelInfo, "compensation parked",
		slog.String("order.id", orderID),
		slog.String("status", string(task.Status)),
	)
	return nil
}

func (h *CompensationHandler) orphaned(ctx context.Context, orderID string, res result.Result[domain.PreOrderReceipt]) {
	h.recorder.logger.LogAttrs(ctx, observability.LevelCritical, "pre-order compensation failed, reservation orphaned",
		slog.String("order.id", orderID),
		slog.Int("status", res.StatusCode),
		slog.String("error", res.Message()),
	)
}

// permanent reports whether a failed cancellation cannot succeed on retry.
func permanent(res result.Result[domain.PreOrderReceipt]) bool {
	return domain.PermanentStatus(res.StatusCode)
}

var _ ports.CompensationRunner = (*CompensationHandler)(nil)
