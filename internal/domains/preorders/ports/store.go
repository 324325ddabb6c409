package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
)

var ErrTaskNotFound = errors.New("compensation task not found")

// CompensationOutbox persists reservations awaiting release.
type CompensationOutbox interface {
	// Enqueue stores a pending task. Enqueueing an order that already has a
	// pending task keeps the existing one.
	Enqueue(ctx context.Context, task *domain.CompensationTask) error
	// Due returns up to limit pending tasks whose next attempt is at or before now.
	Due(ctx context.Context, now time.Time, limit int) ([]*domain.CompensationTask, error)
	Save(ctx context.Context, task *domain.CompensationTask) error
	Get(ctx context.Context, orderID string) (*domain.CompensationTask, error)
	List(ctx context.Context, status domain.TaskStatus) ([]*domain.CompensationTask, error)
}

// SagaJournal is the append-only audit trail of saga transitions.
type SagaJournal interface {
	Append(ctx context.Context, step domain.SagaStep) error
	History(ctx context.Context, sagaID string) ([]domain.SagaStep, error)
}

// EventPublisher emits terminal saga events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SagaEvent) error
}
