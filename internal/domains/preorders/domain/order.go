package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxOrderIDLength bounds remote order identifiers.
const MaxOrderIDLength = 50

var (
	ErrOrderIDRequired = errors.New("OrderId is required.")
	ErrOrderIDLength   = errors.New("OrderId must be between 1 and 50 characters.")
	ErrInvalidAmount   = errors.New("Amount must be greater than zero.")
)

// Product is a catalog entry with its stock level.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
}

// BalanceSnapshot is the user's balance at a point in time.
type BalanceSnapshot struct {
	UserID           string          `json:"userId"`
	TotalBalance     decimal.Decimal `json:"totalBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	BlockedBalance   decimal.Decimal `json:"blockedBalance"`
	Currency         string          `json:"currency"`
	LastUpdated      time.Time       `json:"lastUpdated"`
}

// PreOrderStatus is the remote lifecycle of a reservation.
type PreOrderStatus string

// The balance service reports a reserved pre-order as "blocked", since the
// amount is blocked on the user's balance until it is completed or cancelled.
const (
	PreOrderReserved  PreOrderStatus = "blocked"
	PreOrderCompleted PreOrderStatus = "completed"
	PreOrderCancelled PreOrderStatus = "cancelled"
)

// Reserved reports whether funds are still held for the pre-order.
func (s PreOrderStatus) Reserved() bool {
	return s == PreOrderReserved
}

// Terminal reports whether the pre-order was completed or cancelled.
func (s PreOrderStatus) Terminal() bool {
	return s == PreOrderCompleted || s == PreOrderCancelled
}

// PreOrder is a remote funds reservation.
type PreOrder struct {
	OrderID     string          `json:"orderId"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	Status      PreOrderStatus  `json:"status"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	CancelledAt *time.Time      `json:"cancelledAt,omitempty"`
}

// PreOrderReceipt is what every pre-order mutation returns.
type PreOrderReceipt struct {
	PreOrder       *PreOrder        `json:"preOrder"`
	UpdatedBalance *BalanceSnapshot `json:"updatedBalance,omitempty"`
}

// OrderID returns the reservation identifier, or "" when absent.
func (r PreOrderReceipt) OrderID() string {
	if r.PreOrder == nil {
		return ""
	}
	return r.PreOrder.OrderID
}

// OrderLine is a requested product and quantity. An empty ProductID means
// the client sent none.
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ValidateOrderID enforces the remote identifier constraints.
func ValidateOrderID(orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return ErrOrderIDRequired
	}
	if len(orderID) > MaxOrderIDLength {
		return ErrOrderIDLength
	}
	return nil
}

// ValidateAmount rejects non-positive reservation amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
