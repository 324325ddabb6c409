package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValidateOrderID(t *testing.T) {
	require.ErrorIs(t, ValidateOrderID(""), ErrOrderIDRequired)
	require.ErrorIs(t, ValidateOrderID("   "), ErrOrderIDRequired)
	require.ErrorIs(t, ValidateOrderID(strings.Repeat("x", 51)), ErrOrderIDLength)
	require.NoError(t, ValidateOrderID(strings.Repeat("x", 50)))
}

func TestValidateAmount(t *testing.T) {
	require.ErrorIs(t, ValidateAmount(decimal.Zero), ErrInvalidAmount)
	require.ErrorIs(t, ValidateAmount(decimal.NewFromInt(-1)), ErrInvalidAmount)
	require.NoError(t, ValidateAmount(decimal.RequireFromString("0.01")))
}

func TestCompensationTask_BackoffAndOrphan(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	task, err := NewCompensationTask("order-1", "completion failed", now)
	require.NoError(t, err)
	require.Equal(t, TaskPending, task.Status)
	require.Equal(t, now, task.NextAttemptAt)

	task.RecordFailure("503", now, time.Second, 3)
	require.Equal(t, now.Add(time.Second), task.NextAttemptAt)
	task.RecordFailure("503", now, time.Second, 3)
	require.Equal(t, now.Add(2*time.Second), task.NextAttemptAt)
	require.Equal(t, TaskPending, task.Status)

	task.RecordFailure("503", now, time.Second, 3)
	require.Equal(t, TaskOrphaned, task.Status)
	require.Equal(t, 3, task.Attempts)

	task.Requeue(now)
	require.Equal(t, TaskPending, task.Status)
	require.Zero(t, task.Attempts)
}

func TestNewCompensationTask_RequiresOrderID(t *testing.T) {
	_, err := NewCompensationTask(" ", "", time.Now())
	require.ErrorIs(t, err, ErrEmptyTaskOrderID)
}

func TestSagaState_Terminal(t *testing.T) {
	require.True(t, SagaCompensationFailed.Terminal())
	require.False(t, SagaCompensatingCancel.Terminal())
}

func TestPermanentStatus(t *testing.T) {
	require.True(t, PermanentStatus(400))
	require.True(t, PermanentStatus(404))
	require.False(t, PermanentStatus(408))
	require.False(t, PermanentStatus(429))
	require.False(t, PermanentStatus(503))
	require.False(t, PermanentStatus(200))
}

func TestPreOrderStatus_ReservedIsBlockedOnTheWire(t *testing.T) {
	var p PreOrder
	require.NoError(t, json.Unmarshal([]byte(`{"orderId":"order-1","amount":10,"status":"blocked"}`), &p))
	require.Equal(t, PreOrderReserved, p.Status)
	require.True(t, p.Status.Reserved())
	require.False(t, p.Status.Terminal())

	require.True(t, PreOrderCompleted.Terminal())
	require.True(t, PreOrderCancelled.Terminal())
	require.False(t, PreOrderCancelled.Reserved())
}
