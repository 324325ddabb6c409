package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

const (
	MessageEmptyOrder          = "Order list can not be null or empty"
	MessageInvalidQuantity     = "Quantity must be greater than zero."
	MessageDuplicateProduct    = "Duplicate ProductId found: %s"
	MessageInsufficientBalance = "Insufficient balance to create pre-order."
)

// Saga orchestrates pre-order creation and completion against the balance gateway.
type Saga struct {
	gateway     ports.BalanceGateway
	calculator  *Calculator
	compensator ports.Compensator
	recorder    *recorder
	newID       func() string
}

type SagaOption func(*Saga)

// WithSagaLogger injects a slog logger.
func WithSagaLogger(logger *slog.Logger) SagaOption {
	return func(s *Saga) {
		if logger != nil {
			s.recorder.logger = logger
		}
	}
}

// WithJournal records every transition.
func WithJournal(journal ports.SagaJournal) SagaOption {
	return func(s *Saga) {
		s.recorder.journal = journal
	}
}

// WithEvents publishes terminal transitions.
func WithEvents(events ports.EventPublisher) SagaOption {
	return func(s *Saga) {
		s.recorder.events = events
	}
}

// WithSagaClock overrides the time source of journal entries.
func WithSagaClock(now func() time.Time) SagaOption {
	return func(s *Saga) {
		if now != nil {
			s.recorder.now = now
		}
	}
}

// WithOrderIDGenerator overrides how order ids are minted.
func WithOrderIDGenerator(fn func() string) SagaOption {
	return func(s *Saga) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewSaga wires the saga. Pricing reads the catalog through the gateway.
func NewSaga(gateway ports.BalanceGateway, compensator ports.Compensator, opts ...SagaOption) *Saga {
	s := &Saga{
		gateway:     gateway,
		calculator:  NewCalculator(gateway),
		compensator: compensator,
		recorder:    newRecorder(),
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateOrder validates, prices, checks the balance and reserves funds.
func (s *Saga) CreateOrder(ctx context.Context, lines []domain.OrderLine) result.Result[domain.PreOrderReceipt] {
	run := s.recorder.begin(ctx, "")

	run.step(ctx, domain.SagaValidating)
	if res, ok := validateLines(lines); !ok {
		return fail(ctx, run, res)
	}

	run.step(ctx, domain.SagaPricing)
	total := s.calculator.CalculateTotalPrice(ctx, lines)
	if !total.IsSuccessful {
		return fail(ctx, run, result.Propagate[domain.PreOrderReceipt](total))
	}

	run.step(ctx, domain.SagaCheckingBalance)
	balance := s.gateway.GetBalance(ctx)
	if !balance.IsSuccessful {
		return fail(ctx, run, result.Propagate[domain.PreOrderReceipt](balance))
	}
	if !CheckBalance(balance.Data.AvailableBalance, total.Data) {
		run.logger().LogAttrs(ctx, slog.LevelInfo, "insufficient balance",
			slog.String("total", total.Data.String()),
			slog.String("available", balance.Data.AvailableBalance.String()),
		)
		return fail(ctx, run, result.Failure[domain.PreOrderReceipt](http.StatusBadRequest, MessageInsufficientBalance))
	}

	run.orderID = s.newID()
	run.step(ctx, domain.SagaReserving)
	reserved := s.gateway.CreatePreOrder(ctx, total.Data, run.orderID)
	if !reserved.IsSuccessful {
		return fail(ctx, run, reserved)
	}
	if reserved.Data.PreOrder != nil && reserved.Data.PreOrder.OrderID == "" {
		reserved.Data.PreOrder.OrderID = run.orderID
	}
	run.finish(ctx, domain.SagaReserved, domain.EventPreOrderReserved, reserved.StatusCode, nil)
	return reserved
}

// CompleteOrder finalises a reservation. A failed completion triggers exactly
// one compensation and the caller still receives the completion failure.
func (s *Saga) CompleteOrder(ctx context.Context, orderID string) result.Result[domain.PreOrderReceipt] {
	run := s.recorder.begin(ctx, orderID)

	if err := domain.ValidateOrderID(orderID); err != nil {
		return fail(ctx, run, result.Failure[domain.PreOrderReceipt](http.StatusBadRequest, err.Error()))
	}

	run.step(ctx, domain.SagaCompleting)
	completed := s.gateway.CompletePreOrder(ctx, orderID)
	if completed.IsSuccessful {
		run.finish(ctx, domain.SagaCompleted, domain.EventPreOrderCompleted, completed.StatusCode, nil)
		return completed
	}

	run.record(ctx, domain.SagaCompensatingCancel, completed.StatusCode, completed.ErrorMessages)
	reason := fmt.Sprintf("completion failed with status %d: %s", completed.StatusCode, completed.Message())
	run.logger().LogAttrs(ctx, slog.LevelWarn, "pre-order completion failed, compensating",
		slog.String("order.id", orderID),
		slog.Int("status", completed.StatusCode),
		slog.String("error", completed.Message()),
	)
	if s.compensator != nil {
		s.compensator.Trigger(ctx, orderID, reason)
	}
	return completed
}

func validateLines(lines []domain.OrderLine) (result.Result[domain.PreOrderReceipt], bool) {
	if len(lines) == 0 {
		return result.Failure[domain.PreOrderReceipt](http.StatusBadRequest, MessageEmptyOrder), false
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return result.Failure[domain.PreOrderReceipt](http.StatusBadRequest, MessageInvalidQuantity), false
		}
	}
	if dup, id := HasDuplicateProductIDs(lines); dup {
		return result.Failure[domain.PreOrderReceipt](http.StatusBadRequest, fmt.Sprintf(MessageDuplicateProduct, id)), false
	}
	return result.Result[domain.PreOrderReceipt]{}, true
}

func fail(ctx context.Context, run *sagaRun, res result.Result[domain.PreOrderReceipt]) result.Result[domain.PreOrderReceipt] {
	run.finish(ctx, domain.SagaFailed, domain.EventPreOrderFailed, res.StatusCode, res.ErrorMessages)
	return res
}

// CheckBalance reports whether available covers total.
func CheckBalance(available, total decimal.Decimal) bool {
	return !available.LessThan(total)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ ports.OrderService = (*Saga)(nil)
