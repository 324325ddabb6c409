package application

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/memory"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
)

func newTestSaga(gw *fakeGateway, comp *syncCompensator, journal *memory.Journal, events *memory.Publisher) *Saga {
	return NewSaga(gw, comp,
		WithJournal(journal),
		WithEvents(events),
		WithOrderIDGenerator(func() string { return "order-1" }),
	)
}

func states(steps []domain.SagaStep) []domain.SagaState {
	out := make([]domain.SagaState, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.State)
	}
	return out
}

func TestCreateOrder_ReservesWhenBalanceCovers(t *testing.T) {
	gw := newFakeGateway()
	journal, events := memory.NewJournal(), memory.NewPublisher()
	saga := newTestSaga(gw, &syncCompensator{}, journal, events)

	res := saga.CreateOrder(context.Background(), []domain.OrderLine{
		{ProductID: "1", Quantity: 2},
		{ProductID: "2", Quantity: 3},
	})

	require.True(t, res.IsSuccessful, res.Message())
	require.Len(t, gw.createCalls, 1)
	assert.True(t, decimal.NewFromInt(500).Equal(gw.createCalls[0].Amount))
	assert.Equal(t, "order-1", gw.createCalls[0].OrderID)
	assert.Equal(t, "order-1", res.Data.OrderID())

	assert.Equal(t, []domain.SagaState{
		domain.SagaValidating, domain.SagaPricing, domain.SagaCheckingBalance,
		domain.SagaReserving, domain.SagaReserved,
	}, states(journal.All()))
	require.Len(t, events.Events(), 1)
	assert.Equal(t, domain.EventPreOrderReserved, events.Events()[0].Name)
}

func TestCreateOrder_InsufficientBalanceNeverReserves(t *testing.T) {
	gw := newFakeGateway()
	gw.balance.Data.AvailableBalance = decimal.NewFromInt(50)
	events := memory.NewPublisher()
	saga := newTestSaga(gw, &syncCompensator{}, memory.NewJournal(), events)

	res := saga.CreateOrder(context.Background(), []domain.OrderLine{{ProductID: "1", Quantity: 1}})

	require.False(t, res.IsSuccessful)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, []string{MessageInsufficientBalance}, res.ErrorMessages)
	assert.Empty(t, gw.createCalls)
	require.Len(t, events.Events(), 1)
	assert.Equal(t, domain.EventPreOrderFailed, events.Events()[0].Name)
}

func TestCreateOrder_ExactBalanceIsEnough(t *testing.T) {
	gw := newFakeGateway()
	gw.balance.Data.AvailableBalance = decimal.NewFromInt(100)
	saga := newTestSaga(gw, &syncCompensator{}, memory.NewJournal(), memory.NewPublisher())

	res := saga.CreateOrder(context.Background(), []domain.OrderLine{{ProductID: "1", Quantity: 1}})
	assert.True(t, res.IsSuccessful)
	assert.Len(t, gw.createCalls, 1)
}

func TestCreateOrder_ValidationFailsWithoutRemoteCalls(t *testing.T) {
	cases := []struct {
		name  string
		lines []domain.OrderLine
		want  string
	}{
		{"empty", nil, MessageEmptyOrder},
		{"zero quantity", []domain.OrderLine{{ProductID: "1", Quantity: 0}}, MessageInvalidQuantity},
		{"negative quantity", []domain.OrderLine{{ProductID: "1", Quantity: -2}}, MessageInvalidQuantity},
		{"duplicate", []domain.OrderLine{{ProductID: "1", Quantity: 1}, {ProductID: "1", Quantity: 2}}, "Duplicate ProductId found: 1"},
		{"null product", []domain.OrderLine{{ProductID: "", Quantity: 1}}, MessageNullProductID},
		{"blank products", []domain.OrderLine{{ProductID: "  ", Quantity: 1}, {ProductID: "  ", Quantity: 1}}, MessageNullProductID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newFakeGateway()
			saga := newTestSaga(gw, &syncCompensator{}, memory.NewJournal(), memory.NewPublisher())

			res := saga.CreateOrder(context.Background(), tc.lines)

			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, []string{tc.want}, res.ErrorMessages)
			assert.Zero(t, gw.catalogCalls)
			assert.Zero(t, gw.balanceCalls)
			assert.Empty(t, gw.createCalls)
		})
	}
}

func TestCreateOrder_PropagatesGatewayFailures(t *testing.T) {
	t.Run("balance", func(t *testing.T) {
		gw := newFakeGateway()
		gw.balance.IsSuccessful = false
		gw.balance.StatusCode = http.StatusServiceUnavailable
		gw.balance.ErrorMessages = []string{"Balance service is temporarily unavailable"}
		saga := newTestSaga(gw, &syncCompensator{}, memory.NewJournal(), memory.NewPublisher())

		res := saga.CreateOrder(context.Background(), []domain.OrderLine{{ProductID: "1", Quantity: 1}})
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
		assert.Empty(t, gw.createCalls)
	})

	t.Run("reservation", func(t *testing.T) {
		gw := newFakeGateway()
		gw.create = failed(http.StatusConflict, "Order already exists")
		saga := newTestSaga(gw, &syncCompensator{}, memory.NewJournal(), memory.NewPublisher())

		res := saga.CreateOrder(context.Background(), []domain.OrderLine{{ProductID: "1", Quantity: 1}})
		assert.Equal(t, http.StatusConflict, res.StatusCode)
		assert.Equal(t, []string{"Order already exists"}, res.ErrorMessages)
	})
}

func TestCompleteOrder_SuccessDoesNotCompensate(t *testing.T) {
	gw := newFakeGateway()
	comp := &syncCompensator{}
	events := memory.NewPublisher()
	saga := newTestSaga(gw, comp, memory.NewJournal(), events)

	res := saga.CompleteOrder(context.Background(), "order-1")

	require.True(t, res.IsSuccessful)
	assert.Equal(t, []string{"order-1"}, gw.completeCalls)
	assert.Empty(t, comp.triggers)
	assert.Empty(t, gw.cancels())
	require.Len(t, events.Events(), 1)
	assert.Equal(t, domain.EventPreOrderCompleted, events.Events()[0].Name)
}

func TestCompleteOrder_FailureCompensatesExactlyOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.complete = unavailable
	journal := memory.NewJournal()
	comp := &syncCompensator{handler: NewCompensationHandler(gw, WithCompensationJournal(journal))}
	saga := newTestSaga(gw, comp, journal, memory.NewPublisher())

	res := saga.CompleteOrder(context.Background(), "order-1")

	assert.False(t, res.IsSuccessful)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, []string{"order-1"}, comp.triggers)
	assert.Equal(t, []string{"order-1"}, gw.cancels())
	assert.Contains(t, states(journal.All()), domain.SagaCompensatingCancel)
	assert.Contains(t, states(journal.All()), domain.SagaCompensated)
}

func TestCompleteOrder_RejectsInvalidOrderID(t *testing.T) {
	gw := newFakeGateway()
	comp := &syncCompensator{}
	saga := newTestSaga(gw, comp, memory.NewJournal(), memory.NewPublisher())

	res := saga.CompleteOrder(context.Background(), "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, []string{domain.ErrOrderIDRequired.Error()}, res.ErrorMessages)

	long := make([]byte, domain.MaxOrderIDLength+1)
	for i := range long {
		long[i] = 'x'
	}
	res = saga.CompleteOrder(context.Background(), string(long))
	assert.Equal(t, []string{domain.ErrOrderIDLength.Error()}, res.ErrorMessages)

	assert.Empty(t, gw.completeCalls)
	assert.Empty(t, comp.triggers)
}

func TestCheckBalance(t *testing.T) {
	assert.True(t, CheckBalance(decimal.NewFromInt(1000), decimal.NewFromInt(500)))
	assert.True(t, CheckBalance(decimal.NewFromInt(100), decimal.NewFromInt(100)))
	assert.False(t, CheckBalance(decimal.NewFromInt(50), decimal.NewFromInt(100)))
}
