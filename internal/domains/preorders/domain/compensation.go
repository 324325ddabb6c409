package domain

import (
	"errors"
	"strings"
	"time"
)

// TaskStatus is the lifecycle of a durable compensation task.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskDone     TaskStatus = "done"
	TaskOrphaned TaskStatus = "orphaned"
)

var ErrEmptyTaskOrderID = errors.New("compensation task requires an order id")

// CompensationTask records a reservation that still has to be released.
type CompensationTask struct {
	OrderID       string
	Reason        string
	Status        TaskStatus
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewCompensationTask builds a pending task due immediately.
func NewCompensationTask(orderID, reason string, now time.Time) (*CompensationTask, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrEmptyTaskOrderID
	}
	return &CompensationTask{
		OrderID:       orderID,
		Reason:        reason,
		Status:        TaskPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// RecordFailure bumps the attempt counter and schedules the next try with
// exponential backoff. Once maxAttempts is reached the task is orphaned.
func (t *CompensationTask) RecordFailure(lastErr string, now time.Time, base time.Duration, maxAttempts int) {
	t.Attempts++
	t.LastError = lastErr
	t.UpdatedAt = now
	if maxAttempts > 0 && t.Attempts >= maxAttempts {
		t.Status = TaskOrphaned
		return
	}
	delay := base << (t.Attempts - 1)
	if delay <= 0 || delay > time.Hour {
		delay = time.Hour
	}
	t.NextAttemptAt = now.Add(delay)
}

// MarkDone closes the task.
func (t *CompensationTask) MarkDone(now time.Time) {
	t.Status = TaskDone
	t.LastError = ""
	t.UpdatedAt = now
}

// Requeue makes an orphaned or pending task due again with a fresh budget.
func (t *CompensationTask) Requeue(now time.Time) {
	t.Status = TaskPending
	t.Attempts = 0
	t.NextAttemptAt = now
	t.UpdatedAt = now
}

// PermanentStatus reports whether a failed cancellation with this status can
// never succeed on retry. Timeouts and throttling stay retryable.
func PermanentStatus(status int) bool {
	return status >= 400 && status < 500 && status != 408 && status != 429
}
