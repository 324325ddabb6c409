package application

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

const (
	MessageNullProductID     = "ProductId cannot be null"
	MessageProductNotFound   = "Product not found"
	MessageInsufficientStock = "Requested quantity is not available in stock"
)

// Calculator prices order lines against the catalog.
type Calculator struct {
	catalog ports.CatalogReader
}

// NewCalculator wires the calculator with its catalog source.
func NewCalculator(catalog ports.CatalogReader) *Calculator {
	return &Calculator{catalog: catalog}
}

// CalculateTotalPrice sums price*quantity over lines. The first failing line
// short-circuits. Lines without a product id fail before the catalog is read.
func (c *Calculator) CalculateTotalPrice(ctx context.Context, lines []domain.OrderLine) result.Result[decimal.Decimal] {
	for _, line := range lines {
		if missingProductID(line) {
			return result.Failure[decimal.Decimal](http.StatusBadRequest, MessageNullProductID)
		}
	}

	catalog := c.catalog.GetCatalog(ctx)
	if !catalog.IsSuccessful {
		return result.Propagate[decimal.Decimal](catalog)
	}
	byID := make(map[string]domain.Product, len(catalog.Data))
	for _, p := range catalog.Data {
		byID[p.ID] = p
	}

	total := decimal.Zero
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return result.Failure[decimal.Decimal](http.StatusNotFound, MessageProductNotFound)
		}
		if line.Quantity > product.Stock {
			return result.Failure[decimal.Decimal](http.StatusBadRequest, MessageInsufficientStock)
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return result.Succeed(total)
}

// HasDuplicateProductIDs reports the first product id that appears twice.
// Lines without a product id are ignored.
func HasDuplicateProductIDs(lines []domain.OrderLine) (bool, string) {
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if missingProductID(line) {
			continue
		}
		if _, dup := seen[line.ProductID]; dup {
			return true, line.ProductID
		}
		seen[line.ProductID] = struct{}{}
	}
	return false, ""
}

// missingProductID treats a blank id the same as an absent one.
func missingProductID(line domain.OrderLine) bool {
	return strings.TrimSpace(line.ProductID) == ""
}
