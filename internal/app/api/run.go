package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	gatewayserver "github.com/Apurer/preorder-gateway/go"
	"github.com/Apurer/preorder-gateway/internal/app/core"
	preorderobs "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/observability"
	preorderworkflows "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/workflows"
	preorderapp "github.com/Apurer/preorder-gateway/internal/domains/preorders/application"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	platformobservability "github.com/Apurer/preorder-gateway/internal/platform/observability"
)

// Run boots the pre-order HTTP API with observability, the balance gateway,
// and compensation wired. It returns when ctx is cancelled or the server fails.
func Run(ctx context.Context) error {
	const serviceName = "preorder-api"
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

	inline := preorderworkflows.NewInlineCompensator(components.Compensation, components.InlineCompensationTimeout())
	defer inline.Wait()
	var compensator ports.Compensator = inline
	if temporalClient, err := core.DialTemporal(cfg, instruments, logger); err != nil {
		logger.Warn("Temporal workflows unavailable, compensating inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		compensator = preorderworkflows.NewTemporalCompensator(temporalClient, components.Compensation, logger)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	if !components.DurableOutbox {
		relay := components.Relay(cfg)
		go func() {
			_ = relay.Run(ctx)
		}()
		logger.Info("compensation relay running in-process")
	}

	saga := preorderapp.NewSaga(components.Gateway, compensator,
		preorderapp.WithSagaLogger(logger),
		preorderapp.WithJournal(components.Journal),
		preorderapp.WithEvents(components.Events),
	)
	orderService := preorderobs.New(saga,
		preorderobs.WithLogger(logger),
		preorderobs.WithTracer(instruments.Tracer("internal.preorders.application")),
		preorderobs.WithMeter(instruments.Meter("internal.preorders.application")),
	)

	router := gatewayserver.NewRouter(gatewayserver.ApiHandleFunctions{
		OrderAPI:   gatewayserver.NewOrderAPI(orderService),
		AccountAPI: gatewayserver.NewAccountAPI(components.Gateway),
	}, otelgin.Middleware(serviceName))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("pre-order API listening", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("pre-order API server exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("pre-order API shutdown failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("pre-order API stopped")
	return nil
}
