package gatewayserver

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

// AccountReader exposes the cached read side of the balance gateway.
type AccountReader interface {
	GetCatalog(ctx context.Context) result.Result[[]domain.Product]
	GetBalance(ctx context.Context) result.Result[domain.BalanceSnapshot]
}

// AccountAPI serves the product catalog and the user balance.
type AccountAPI struct {
	reader AccountReader
}

// NewAccountAPI creates an AccountAPI backed by the balance gateway.
func NewAccountAPI(reader AccountReader) AccountAPI {
	return AccountAPI{reader: reader}
}

// Get /api/products
// List the product catalog
func (api *AccountAPI) GetProducts(c *gin.Context) {
	respondResult(c, api.reader.GetCatalog(c.Request.Context()))
}

// Get /api/balance
// Show the user balance
func (api *AccountAPI) GetBalance(c *gin.Context) {
	respondResult(c, api.reader.GetBalance(c.Request.Context()))
}
