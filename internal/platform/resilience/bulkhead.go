package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Bulkhead admits at most maxConcurrent in-flight calls plus maxQueue waiters.
// Anything beyond that is rejected immediately.
type Bulkhead struct {
	slots     *semaphore.Weighted
	admission *semaphore.Weighted
}

// NewBulkhead builds a bulkhead with the given limits.
func NewBulkhead(maxConcurrent, maxQueue int) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxQueue < 0 {
		maxQueue = 0
	}
	return &Bulkhead{
		slots:     semaphore.NewWeighted(int64(maxConcurrent)),
		admission: semaphore.NewWeighted(int64(maxConcurrent + maxQueue)),
	}
}

// Acquire reserves a slot, waiting in the queue if needed. The returned release
// func must be called exactly once.
func (b *Bulkhead) Acquire(ctx context.Context) (func(), error) {
	if !b.admission.TryAcquire(1) {
		return nil, ErrBulkheadRejected
	}
	if err := b.slots.Acquire(ctx, 1); err != nil {
		b.admission.Release(1)
		return nil, err
	}
	return func() {
		b.slots.Release(1)
		b.admission.Release(1)
	}, nil
}
