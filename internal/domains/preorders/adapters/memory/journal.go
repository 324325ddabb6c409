package memory

import (
	"context"
	"sync"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
)

var _ ports.SagaJournal = (*Journal)(nil)

// Journal keeps saga transitions in memory.
type Journal struct {
	mu    sync.RWMutex
	steps []domain.SagaStep
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Append(_ context.Context, step domain.SagaStep) error {
	step.Messages = append([]string(nil), step.Messages...)
	j.mu.Lock()
	j.steps = append(j.steps, step)
	j.mu.Unlock()
	return nil
}

func (j *Journal) History(_ context.Context, sagaID string) ([]domain.SagaStep, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []domain.SagaStep
	for _, step := range j.steps {
		if step.SagaID == sagaID {
			out = append(out, step)
		}
	}
	return out, nil
}

// All returns every recorded transition in append order.
func (j *Journal) All() []domain.SagaStep {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]domain.SagaStep(nil), j.steps...)
}
