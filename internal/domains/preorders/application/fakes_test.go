package application

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

type createCall struct {
	Amount  decimal.Decimal
	OrderID string
}

type fakeGateway struct {
	mu sync.Mutex

	catalog  result.Result[[]domain.Product]
	balance  result.Result[domain.BalanceSnapshot]
	create   result.Result[domain.PreOrderReceipt]
	complete result.Result[domain.PreOrderReceipt]
	cancel   []result.Result[domain.PreOrderReceipt]

	catalogCalls  int
	balanceCalls  int
	createCalls   []createCall
	completeCalls []string
	cancelCalls   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		catalog: result.Succeed([]domain.Product{
			{ID: "1", Name: "Phone", Price: decimal.NewFromInt(100), Stock: 10},
			{ID: "2", Name: "Case", Price: decimal.NewFromInt(100), Stock: 3},
		}),
		balance: result.Succeed(domain.BalanceSnapshot{
			UserID:           "u-1",
			TotalBalance:     decimal.NewFromInt(1000),
			AvailableBalance: decimal.NewFromInt(1000),
		}),
		create:   receipt("", domain.PreOrderReserved),
		complete: receipt("", domain.PreOrderCompleted),
	}
}

func receipt(orderID string, status domain.PreOrderStatus) result.Result[domain.PreOrderReceipt] {
	return result.Succeed(domain.PreOrderReceipt{PreOrder: &domain.PreOrder{OrderID: orderID, Status: status}})
}

func failed(status int, msg string) result.Result[domain.PreOrderReceipt] {
	return result.Failure[domain.PreOrderReceipt](status, msg)
}

func (f *fakeGateway) GetCatalog(context.Context) result.Result[[]domain.Product] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	return f.catalog
}

func (f *fakeGateway) GetBalance(context.Context) result.Result[domain.BalanceSnapshot] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	return f.balance
}

func (f *fakeGateway) CreatePreOrder(_ context.Context, amount decimal.Decimal, orderID string) result.Result[domain.PreOrderReceipt] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, createCall{Amount: amount, OrderID: orderID})
	return f.create
}

func (f *fakeGateway) CompletePreOrder(_ context.Context, orderID string) result.Result[domain.PreOrderReceipt] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls = append(f.completeCalls, orderID)
	return f.complete
}

func (f *fakeGateway) CancelPreOrder(_ context.Context, orderID string) result.Result[domain.PreOrderReceipt] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, orderID)
	if len(f.cancel) == 0 {
		return receipt(orderID, domain.PreOrderCancelled)
	}
	next := f.cancel[0]
	if len(f.cancel) > 1 {
		f.cancel = f.cancel[1:]
	}
	return next
}

func (f *fakeGateway) cancels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelCalls...)
}

// syncCompensator runs compensation inline so tests can assert on it directly.
type syncCompensator struct {
	handler  *CompensationHandler
	triggers []string
}

func (c *syncCompensator) Trigger(ctx context.Context, orderID, reason string) {
	c.triggers = append(c.triggers, orderID)
	if c.handler != nil {
		c.handler.Compensate(ctx, orderID, reason)
	}
}

var unavailable = failed(http.StatusServiceUnavailable, "Balance service is temporarily unavailable")

// capture keeps every record so tests can assert on levels and messages.
type capture struct {
	mu      sync.Mutex
	records []slog.Record
}

func (c *capture) Enabled(context.Context, slog.Level) bool { return true }

func (c *capture) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r.Clone())
	return nil
}

func (c *capture) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *capture) WithGroup(string) slog.Handler      { return c }

func (c *capture) has(level slog.Level, msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.Level == level && r.Message == msg {
			return true
		}
	}
	return false
}
