package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
)

// recorder writes saga transitions to the journal and publishes terminal
// events. Neither failure aborts the saga.
type recorder struct {
	journal ports.SagaJournal
	events  ports.EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

func newRecorder() *recorder {
	return &recorder{logger: discardLogger(), now: time.Now}
}

type sagaRun struct {
	rec     *recorder
	sagaID  string
	orderID string
}

func (r *recorder) begin(_ context.Context, orderID string) *sagaRun {
	return &sagaRun{rec: r, sagaID: uuid.NewString(), orderID: orderID}
}

func (run *sagaRun) logger() *slog.Logger {
	return run.rec.logger
}

func (run *sagaRun) step(ctx context.Context, state domain.SagaState) {
	run.record(ctx, state, 0, nil)
}

func (run *sagaRun) record(ctx context.Context, state domain.SagaState, status int, messages []string) {
	sc := trace.SpanContextFromContext(ctx)
	entry := domain.SagaStep{
		SagaID:     run.sagaID,
		OrderID:    run.orderID,
		State:      state,
		StatusCode: status,
		Messages:   messages,
		OccurredAt: run.rec.now().UTC(),
	}
	if sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}
	run.rec.logger.LogAttrs(ctx, slog.LevelDebug, "saga transition",
		slog.String("saga.id", run.sagaID),
		slog.String("order.id", run.orderID),
		slog.String("state", string(state)),
	)
	if run.rec.journal == nil {
		return
	}
	if err := run.rec.journal.Append(ctx, entry); err != nil {
		run.rec.logger.LogAttrs(ctx, slog.LevelWarn, "saga journal append failed",
			slog.String("saga.id", run.sagaID),
			slog.String("error", err.Error()),
		)
	}
}

func (run *sagaRun) finish(ctx context.Context, state domain.SagaState, eventName string, status int, messages []string) {
	run.record(ctx, state, status, messages)
	run.rec.publish(ctx, domain.SagaEvent{
		Name:       eventName,
		SagaID:     run.sagaID,
		OrderID:    run.orderID,
		State:      state,
		StatusCode: status,
		Messages:   messages,
		OccurredAt: run.rec.now().UTC(),
	})
}

func (r *recorder) publish(ctx context.Context, event domain.SagaEvent) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ctx, event); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "saga event publish failed",
			slog.String("event", event.Name),
			slog.String("order.id", event.OrderID),
			slog.String("error", err.Error()),
		)
	}
}
