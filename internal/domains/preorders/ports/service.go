package ports

import (
	"context"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

// OrderService defines the pre-order use cases exposed to adapters (inbound/driving port).
type OrderService interface {
	CreateOrder(ctx context.Context, lines []domain.OrderLine) result.Result[domain.PreOrderReceipt]
	CompleteOrder(ctx context.Context, orderID string) result.Result[domain.PreOrderReceipt]
}

// Compensator releases a reservation in the background. Trigger must not block
// on the remote call.
type Compensator interface {
	Trigger(ctx context.Context, orderID, reason string)
}

// CompensationRunner performs one synchronous compensation attempt.
type CompensationRunner interface {
	Compensate(ctx context.Context, orderID, reason string) result.Result[domain.PreOrderReceipt]
}
