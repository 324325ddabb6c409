package memory

import (
	"context"
	"sync"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
)

var _ ports.EventPublisher = (*Publisher)(nil)

// Publisher collects saga events in memory. It backs tests and deployments
// without a broker.
type Publisher struct {
	mu     sync.Mutex
	events []domain.SagaEvent
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, event domain.SagaEvent) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

// Events returns the published events in order.
func (p *Publisher) Events() []domain.SagaEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.SagaEvent(nil), p.events...)
}
