package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/preorder-gateway/internal/app/core"
	preorderworkflows "github.com/Apurer/preorder-gateway/internal/durable/temporal/workflows/preorders"
	platformobservability "github.com/Apurer/preorder-gateway/internal/platform/observability"
	preorderactivities "github.com/Apurer/preorder-gateway/internal/platform/temporal/activities/preorders"
)

// Run hosts the compensation workflow worker and the outbox relay until ctx is
// cancelled. Without Temporal only the relay runs.
func Run(ctx context.Context) error {
	const serviceName = "preorder-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := core.LoadConfig()
	if err != nil {
		return err
	}
	decimal.MarshalJSONWithoutQuotes = true

	components, err := core.Build(ctx, cfg, instruments)
	if err != nil {
		return err
	}
	defer components.Close()
	if !components.DurableOutbox {
		logger.Warn("worker relay has no durable outbox, only tasks parked by this process are retried")
	}

	relayDone := make(chan error, 1)
	go func() {
		relayDone <- components.Relay(cfg).Run(ctx)
	}()

	temporalClient, err := core.DialTemporal(cfg, instruments, logger)
	if err != nil {
		logger.Warn("Temporal unavailable, running compensation relay only", slog.String("error", err.Error()))
		return <-relayDone
	}
	defer temporalClient.Close()

	activities := preorderactivities.NewActivities(components.ActivityCompensation(), logger)
	w := worker.New(temporalClient, preorderworkflows.CompensationTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(preorderworkflows.CompensationWorkflow, workflow.RegisterOptions{Name: preorderworkflows.CompensationWorkflowName})
	w.RegisterActivityWithOptions(activities.CancelPreOrder, activity.RegisterOptions{Name: preorderactivities.CancelPreOrderActivityName})
	w.RegisterActivityWithOptions(activities.RecordOrphan, activity.RegisterOptions{Name: preorderactivities.RecordOrphanActivityName})

	if err := w.Start(); err != nil {
		logger.Error("Temporal worker failed to start", slog.String("error", err.Error()))
		return err
	}
	logger.Info("worker listening", slog.String("taskQueue", preorderworkflows.CompensationTaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	<-ctx.Done()
	w.Stop()
	logger.Info("Temporal worker stopped")
	return <-relayDone
}
