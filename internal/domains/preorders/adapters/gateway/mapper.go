package gateway

import (
	"errors"
	"fmt"

	"github.com/Apurer/preorder-gateway/internal/clients/http/balance"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/platform/resilience"
)

func toProducts(in []balance.Product) []domain.Product {
	out := make([]domain.Product, 0, len(in))
	for _, p := range in {
		out = append(out, domain.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Currency:    p.Currency,
			Category:    p.Category,
			Stock:       p.Stock,
		})
	}
	return out
}

func toBalance(in *balance.Balance) *domain.BalanceSnapshot {
	if in == nil {
		return nil
	}
	return &domain.BalanceSnapshot{
		UserID:           in.UserID,
		TotalBalance:     in.TotalBalance,
		AvailableBalance: in.AvailableBalance,
		BlockedBalance:   in.BlockedBalance,
		Currency:         in.Currency,
		LastUpdated:      in.LastUpdated,
	}
}

func toReceipt(in *balance.PreOrderData) (domain.PreOrderReceipt, error) {
	if in == nil || in.PreOrder == nil {
		return domain.PreOrderReceipt{}, fmt.Errorf("%w: pre-order missing from payload", resilience.ErrMalformedResponse)
	}
	p := in.PreOrder
	return domain.PreOrderReceipt{
		PreOrder: &domain.PreOrder{
			OrderID:     p.OrderID,
			Amount:      p.Amount,
			Timestamp:   p.Timestamp,
			Status:      domain.PreOrderStatus(p.Status),
			CompletedAt: p.CompletedAt,
			CancelledAt: p.CancelledAt,
		},
		UpdatedBalance: toBalance(in.UpdatedBalance),
	}, nil
}

// translate maps client errors onto the pipeline's classification vocabulary.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *balance.StatusError
	switch {
	case errors.As(err, &statusErr):
		return &resilience.RemoteError{StatusCode: statusErr.StatusCode, Message: statusErr.Message}
	case errors.Is(err, balance.ErrMalformedResponse):
		return fmt.Errorf("%w: %w", resilience.ErrMalformedResponse, err)
	default:
		return err
	}
}
