package workflows

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	preorderworkflows "github.com/Apurer/preorder-gateway/internal/durable/temporal/workflows/preorders"
	preorderactivities "github.com/Apurer/preorder-gateway/internal/platform/temporal/activities/preorders"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

// DefaultCompensationTimeout bounds a detached inline compensation. It covers
// the default pre-order retry budget of the resilience pipeline.
const DefaultCompensationTimeout = 3 * time.Minute

var (
	_ ports.Compensator = (*InlineCompensator)(nil)
	_ ports.Compensator = (*TemporalCompensator)(nil)
)

// InlineCompensator runs compensations on detached goroutines in-process.
type InlineCompensator struct {
	runner  ports.CompensationRunner
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewInlineCompensator wraps the compensation handler. A zero timeout takes the default.
func NewInlineCompensator(runner ports.CompensationRunner, timeout time.Duration) *InlineCompensator {
	if timeout <= 0 {
		timeout = DefaultCompensationTimeout
	}
	return &InlineCompensator{runner: runner, timeout: timeout}
}

// Trigger starts the compensation and returns immediately. The caller's
// cancellation does not stop it; trace context and values are kept.
func (c *InlineCompensator) Trigger(ctx context.Context, orderID, reason string) {
	if c == nil || c.runner == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(detached, c.timeout)
		defer cancel()
		c.runner.Compensate(ctx, orderID, reason)
	}()
}

// Wait blocks until every triggered compensation has finished.
func (c *InlineCompensator) Wait() {
	c.wg.Wait()
}

// WorkflowStarter is the subset of the Temporal client used to start workflows.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Parker stores a compensation for the outbox relay.
type Parker interface {
	Park(ctx context.Context, orderID, reason string, failed result.Result[domain.PreOrderReceipt]) error
}

// TemporalCompensator starts one durable compensation workflow per order.
type TemporalCompensator struct {
	client    WorkflowStarter
	taskQueue string
	fallback  Parker
	logger    *slog.Logger
}

// NewTemporalCompensator wires a Temporal client. When the workflow cannot be
// started the compensation is parked through fallback.
func NewTemporalCompensator(c WorkflowStarter, fallback Parker, logger *slog.Logger) *TemporalCompensator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TemporalCompensator{
		client:    c,
		taskQueue: preorderworkflows.CompensationTaskQueue,
		fallback:  fallback,
		logger:    logger,
	}
}

// Trigger starts the compensation workflow without waiting for its result.
func (c *TemporalCompensator) Trigger(ctx context.Context, orderID, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := c.start(ctx, orderID, reason)
	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	switch {
	case err == nil:
		c.logger.LogAttrs(ctx, slog.LevelInfo, "compensation workflow started",
			slog.String("order.id", orderID),
			slog.String("workflow.id", CompensationWorkflowID(orderID)),
		)
		return
	case errors.As(err, &alreadyStarted):
		c.logger.LogAttrs(ctx, slog.LevelInfo, "compensation workflow already running", slog.String("order.id", orderID))
		return
	}

	c.logger.LogAttrs(ctx, slog.LevelWarn, "compensation workflow unavailable, parking in outbox",
		slog.String("order.id", orderID),
		slog.String("error", err.Error()),
	)
	if c.fallback == nil {
		return
	}
	failed := result.Failure[domain.PreOrderReceipt](http.StatusServiceUnavailable, "compensation workflow could not be started")
	_ = c.fallback.Park(ctx, orderID, reason, failed)
}

func (c *TemporalCompensator) start(ctx context.Context, orderID, reason string) error {
	if c == nil || c.client == nil {
		return errors.New("temporal compensator not configured")
	}
	options := client.StartWorkflowOptions{
		ID:                                       CompensationWorkflowID(orderID),
		TaskQueue:                                c.taskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	_, err := c.client.ExecuteWorkflow(ctx, options, preorderworkflows.CompensationWorkflowName, preorderactivities.CompensationInput{
		OrderID: orderID,
		Reason:  reason,
		TraceID: workflowTraceID(ctx),
	})
	return err
}

// CompensationWorkflowID is deterministic so an order never runs two compensations.
func CompensationWorkflowID(orderID string) string {
	return "preorder-compensation-" + orderID
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
