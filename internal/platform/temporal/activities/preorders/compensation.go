package preorders

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/platform/observability"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

const (
	// CancelPreOrderActivityName releases one reservation on the balance service.
	CancelPreOrderActivityName = "preorders.activities.CancelPreOrder"
	// RecordOrphanActivityName parks a reservation that could not be released.
	RecordOrphanActivityName = "preorders.activities.RecordOrphan"

	// ErrTypeRemoteRejected marks a permanent 4xx answer to a cancellation.
	ErrTypeRemoteRejected = "RemoteRejected"
	// ErrTypeRemoteFailure marks a cancellation failure worth retrying.
	ErrTypeRemoteFailure = "RemoteFailure"
)

// Canceller is the single-attempt compensation the activities drive.
type Canceller interface {
	Cancel(ctx context.Context, orderID string) result.Result[domain.PreOrderReceipt]
	Park(ctx context.Context, orderID, reason string, failed result.Result[domain.PreOrderReceipt]) error
}

// CompensationInput identifies the reservation to release.
type CompensationInput struct {
	OrderID string
	Reason  string
	TraceID string
}

// OrphanInput describes a cancellation that exhausted its retries.
type OrphanInput struct {
	OrderID    string
	Reason     string
	StatusCode int
	Error      string
}

// Activities groups the compensation activities of the preorders context.
type Activities struct {
	canceller Canceller
	logger    *slog.Logger
}

// NewActivities wires the compensation handler into the Temporal activities bundle.
func NewActivities(canceller Canceller, logger *slog.Logger) *Activities {
	return &Activities{canceller: canceller, logger: logger}
}

// CancelPreOrder runs one cancellation. Permanent rejections are returned as
// non-retryable application errors carrying the remote status code.
func (a *Activities) CancelPreOrder(ctx context.Context, input CompensationInput) (*domain.PreOrderReceipt, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.canceller == nil {
		logger.Error("cancel pre-order activity not initialized", "orderId", input.OrderID)
		return nil, errors.New("cancel pre-order activity not initialized")
	}
	logger.Info("CancelPreOrder activity started", "orderId", input.OrderID, "attempt", activity.GetInfo(ctx).Attempt)
	res := a.canceller.Cancel(ctx, input.OrderID)
	if res.IsSuccessful {
		logger.Info("CancelPreOrder activity completed", "orderId", input.OrderID)
		return &res.Data, nil
	}
	logger.Warn("CancelPreOrder activity failed", "orderId", input.OrderID, "status", res.StatusCode, "error", res.Message())
	if domain.PermanentStatus(res.StatusCode) {
		return nil, temporal.NewNonRetryableApplicationError(res.Message(), ErrTypeRemoteRejected, nil, res.StatusCode)
	}
	return nil, temporal.NewApplicationError(res.Message(), ErrTypeRemoteFailure, res.StatusCode)
}

// RecordOrphan stores the reservation in the outbox and reports it at critical level.
func (a *Activities) RecordOrphan(ctx context.Context, input OrphanInput) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.canceller == nil {
		logger.Error("record orphan activity not initialized", "orderId", input.OrderID)
		return errors.New("record orphan activity not initialized")
	}
	if a.logger != nil {
		a.logger.LogAttrs(ctx, observability.LevelCritical, "pre-order compensation failed, reservation orphaned",
			slog.String("order.id", input.OrderID),
			slog.Int("status", input.StatusCode),
			slog.String("error", input.Error),
		)
	}
	failed := result.Failure[domain.PreOrderReceipt](input.StatusCode, input.Error)
	if err := a.canceller.Park(ctx, input.OrderID, input.Reason, failed); err != nil {
		logger.Error("RecordOrphan activity failed", "orderId", input.OrderID, "error", err)
		return err
	}
	logger.Info("RecordOrphan activity completed", "orderId", input.OrderID)
	return nil
}
