package gatewayserver

import (
	"github.com/gin-gonic/gin"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/http/mapper"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
)

// OrderAPI wires HTTP transport with the pre-order saga.
type OrderAPI struct {
	service ports.OrderService
}

// NewOrderAPI creates an OrderAPI backed by the provided saga.
func NewOrderAPI(service ports.OrderService) OrderAPI {
	return OrderAPI{service: service}
}

// Post /api/orders/create
// Price the order, check the balance and reserve funds
func (api *OrderAPI) CreateOrder(c *gin.Context) {
	var lines []mapper.OrderLine
	if err := c.ShouldBindJSON(&lines); err != nil {
		respondInvalidBody[domain.PreOrderReceipt](c)
		return
	}
	respondResult(c, api.service.CreateOrder(c.Request.Context(), mapper.ToDomainLines(lines)))
}

// Post /api/orders/:id/complete
// Complete a reserved pre-order
func (api *OrderAPI) CompleteOrder(c *gin.Context) {
	respondResult(c, api.service.CompleteOrder(c.Request.Context(), c.Param("id")))
}
