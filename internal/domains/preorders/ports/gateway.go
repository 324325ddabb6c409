package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

// CatalogReader resolves the product catalog.
type CatalogReader interface {
	GetCatalog(ctx context.Context) result.Result[[]domain.Product]
}

// BalanceGateway is the resilient facade over the remote balance service.
// Failures never surface as Go errors; every outcome is a Result.
type BalanceGateway interface {
	CatalogReader
	GetBalance(ctx context.Context) result.Result[domain.BalanceSnapshot]
	CreatePreOrder(ctx context.Context, amount decimal.Decimal, orderID string) result.Result[domain.PreOrderReceipt]
	CompletePreOrder(ctx context.Context, orderID string) result.Result[domain.PreOrderReceipt]
	CancelPreOrder(ctx context.Context, orderID string) result.Result[domain.PreOrderReceipt]
}
