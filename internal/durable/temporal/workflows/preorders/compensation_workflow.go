package preorders

import (
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/preorder-gateway/internal/durable/temporal/sequences"
	preorderactivities "github.com/Apurer/preorder-gateway/internal/platform/temporal/activities/preorders"
)

const (
	// CompensationWorkflowName is the public identifier for registering the workflow.
	CompensationWorkflowName = "preorders.workflows.Compensation"
	// CompensationTaskQueue is the queue consumed by the worker processing compensations.
	CompensationTaskQueue = "PREORDER_COMPENSATION"
)

// CompensationResult reports whether the reservation was released.
type CompensationResult struct {
	OrderID  string
	Released bool
}

// CompensationWorkflow releases a reservation whose completion failed.
func CompensationWorkflow(ctx workflow.Context, input preorderactivities.CompensationInput) (*CompensationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("CompensationWorkflow started", withTraceID(input.TraceID, "orderId", input.OrderID)...)
	released, err := sequences.RunCompensationSequence(ctx, input)
	if err != nil {
		logger.Error("CompensationWorkflow failed", withTraceID(input.TraceID, "orderId", input.OrderID, "error", err)...)
		return nil, err
	}
	logger.Info("CompensationWorkflow completed", withTraceID(input.TraceID, "orderId", input.OrderID, "released", released)...)
	return &CompensationResult{OrderID: input.OrderID, Released: released}, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
