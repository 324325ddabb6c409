package sequences

import (
	"errors"
	"net/http"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	preorderactivities "github.com/Apurer/preorder-gateway/internal/platform/temporal/activities/preorders"
)

// RunCompensationSequence cancels the reservation with retries and records it
// as orphaned once the retries are spent. The returned bool reports success.
func RunCompensationSequence(ctx workflow.Context, input preorderactivities.CompensationInput) (bool, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("compensation sequence started", "orderId", input.OrderID)
	// The activity makes one remote attempt per execution; this policy is the
	// only retry loop, so the timeout need only cover a single attempt.
	cancelOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * time.Second,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: []string{preorderactivities.ErrTypeRemoteRejected},
		},
	}
	orphanOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    10,
		},
	}

	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, cancelOptions), preorderactivities.CancelPreOrderActivityName, input).Get(ctx, nil)
	if err == nil {
		logger.Info("compensation sequence completed", "orderId", input.OrderID)
		return true, nil
	}
	logger.Error("compensation sequence cancel failed", "orderId", input.OrderID, "error", err)

	orphan := preorderactivities.OrphanInput{
		OrderID:    input.OrderID,
		Reason:     input.Reason,
		StatusCode: http.StatusServiceUnavailable,
		Error:      err.Error(),
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		orphan.Error = appErr.Message()
		var status int
		if appErr.HasDetails() && appErr.Details(&status) == nil && status > 0 {
			orphan.StatusCode = status
		}
	}
	if err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, orphanOptions), preorderactivities.RecordOrphanActivityName, orphan).Get(ctx, nil); err != nil {
		logger.Error("compensation sequence orphan record failed", "orderId", input.OrderID, "error", err)
		return false, err
	}
	logger.Warn("compensation sequence orphaned reservation", "orderId", input.OrderID)
	return false, nil
}
