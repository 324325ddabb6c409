package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
)

var _ ports.CompensationOutbox = (*Outbox)(nil)

// Outbox is an in-memory compensation outbox. Tasks do not survive a restart.
type Outbox struct {
	mu    sync.RWMutex
	tasks map[string]*domain.CompensationTask
}

func NewOutbox() *Outbox {
	return &Outbox{tasks: map[string]*domain.CompensationTask{}}
}

func (o *Outbox) Enqueue(_ context.Context, task *domain.CompensationTask) error {
	if task == nil {
		return errors.New("compensation task is nil")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.tasks[task.OrderID]; ok && existing.Status == domain.TaskPending {
		return nil
	}
	clone := *task
	o.tasks[task.OrderID] = &clone
	return nil
}

func (o *Outbox) Due(_ context.Context, now time.Time, limit int) ([]*domain.CompensationTask, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var due []*domain.CompensationTask
	for _, task := range o.tasks {
		if task.Status == domain.TaskPending && !task.NextAttemptAt.After(now) {
			clone := *task
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (o *Outbox) Save(_ context.Context, task *domain.CompensationTask) error {
	if task == nil {
		return errors.New("compensation task is nil")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.tasks[task.OrderID]; !ok {
		return ports.ErrTaskNotFound
	}
	clone := *task
	o.tasks[task.OrderID] = &clone
	return nil
}

func (o *Outbox) Get(_ context.Context, orderID string) (*domain.CompensationTask, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	task, ok := o.tasks[orderID]
	if !ok {
		return nil, ports.ErrTaskNotFound
	}
	clone := *task
	return &clone, nil
}

// List returns tasks with the given status, or all tasks when status is empty.
func (o *Outbox) List(_ context.Context, status domain.TaskStatus) ([]*domain.CompensationTask, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var list []*domain.CompensationTask
	for _, task := range o.tasks {
		if status != "" && task.Status != status {
			continue
		}
		clone := *task
		list = append(list, &clone)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}
