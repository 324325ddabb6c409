package application

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

func TestCalculateTotalPrice_SumsLines(t *testing.T) {
	gw := newFakeGateway()
	calc := NewCalculator(gw)

	res := calc.CalculateTotalPrice(context.Background(), []domain.OrderLine{
		{ProductID: "1", Quantity: 2},
		{ProductID: "2", Quantity: 3},
	})
	require.True(t, res.IsSuccessful)
	assert.True(t, decimal.NewFromInt(500).Equal(res.Data), res.Data.String())
}

func TestCalculateTotalPrice_NullProductFailsBeforeRemoteCall(t *testing.T) {
	gw := newFakeGateway()
	calc := NewCalculator(gw)

	res := calc.CalculateTotalPrice(context.Background(), []domain.OrderLine{
		{ProductID: "1", Quantity: 1},
		{ProductID: "", Quantity: 1},
	})
	require.False(t, res.IsSuccessful)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, []string{MessageNullProductID}, res.ErrorMessages)
	assert.Zero(t, gw.catalogCalls)
}

func TestCalculateTotalPrice_BlankProductIDIsNull(t *testing.T) {
	gw := newFakeGateway()
	calc := NewCalculator(gw)

	lines := []domain.OrderLine{
		{ProductID: "  ", Quantity: 1},
		{ProductID: "  ", Quantity: 1},
	}
	res := calc.CalculateTotalPrice(context.Background(), lines)
	require.False(t, res.IsSuccessful)
	assert.Equal(t, []string{MessageNullProductID}, res.ErrorMessages)
	assert.Zero(t, gw.catalogCalls)

	dup, _ := HasDuplicateProductIDs(lines)
	assert.False(t, dup, "blank ids are reported as null, not duplicate")
}

func TestCalculateTotalPrice_FirstErrorWins(t *testing.T) {
	gw := newFakeGateway()
	calc := NewCalculator(gw)

	res := calc.CalculateTotalPrice(context.Background(), []domain.OrderLine{
		{ProductID: "2", Quantity: 4},
		{ProductID: "missing", Quantity: 1},
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, []string{MessageInsufficientStock}, res.ErrorMessages)

	res = calc.CalculateTotalPrice(context.Background(), []domain.OrderLine{
		{ProductID: "missing", Quantity: 1},
		{ProductID: "2", Quantity: 4},
	})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, []string{MessageProductNotFound}, res.ErrorMessages)
}

func TestCalculateTotalPrice_PropagatesCatalogFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.catalog = result.Failure[[]domain.Product](http.StatusServiceUnavailable, "Balance service is temporarily unavailable")
	calc := NewCalculator(gw)

	res := calc.CalculateTotalPrice(context.Background(), []domain.OrderLine{{ProductID: "1", Quantity: 1}})
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, []string{"Balance service is temporarily unavailable"}, res.ErrorMessages)
}

func TestHasDuplicateProductIDs(t *testing.T) {
	dup, id := HasDuplicateProductIDs([]domain.OrderLine{
		{ProductID: "a"}, {ProductID: "b"}, {ProductID: "b"}, {ProductID: "a"},
	})
	assert.True(t, dup)
	assert.Equal(t, "b", id)

	dup, id = HasDuplicateProductIDs([]domain.OrderLine{{ProductID: ""}, {ProductID: ""}, {ProductID: "a"}})
	assert.False(t, dup)
	assert.Empty(t, id)

	dup, id = HasDuplicateProductIDs([]domain.OrderLine{{ProductID: "  "}, {ProductID: "  "}})
	assert.False(t, dup)
	assert.Empty(t, id)

	dup, _ = HasDuplicateProductIDs(nil)
	assert.False(t, dup)
}
