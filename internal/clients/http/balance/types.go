package balance

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as served by the balance service.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
}

// Balance is the user's balance snapshot.
type Balance struct {
	UserID           string          `json:"userId"`
	TotalBalance     decimal.Decimal `json:"totalBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	BlockedBalance   decimal.Decimal `json:"blockedBalance"`
	Currency         string          `json:"currency"`
	LastUpdated      time.Time       `json:"lastUpdated"`
}

// PreOrder is the remote reservation record.
type PreOrder struct {
	OrderID     string          `json:"orderId"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	Status      string          `json:"status"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	CancelledAt *time.Time      `json:"cancelledAt,omitempty"`
}

// PreOrderData is the payload of every pre-order mutation.
type PreOrderData struct {
	PreOrder       *PreOrder `json:"preOrder"`
	UpdatedBalance *Balance  `json:"updatedBalance"`
}

// PreOrderRequest reserves amount under orderID.
type PreOrderRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	OrderID string          `json:"orderId"`
}

// MarshalJSON sends the amount as a JSON number, which the remote service requires.
func (r PreOrderRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount  json.Number `json:"amount"`
		OrderID string      `json:"orderId"`
	}{Amount: json.Number(r.Amount.String()), OrderID: r.OrderID})
}

// OrderRequest identifies an existing reservation.
type OrderRequest struct {
	OrderID string `json:"orderId"`
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    *T     `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
