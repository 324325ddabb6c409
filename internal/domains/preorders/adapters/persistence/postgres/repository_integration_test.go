//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
	"github.com/Apurer/preorder-gateway/internal/platform/migrations"
)

func setupPreordersPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("preorders_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = migrations.Run(db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func TestOutbox_EnqueueDueAndSave(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPreordersPostgresContainer(t)
	defer cleanup()

	outbox := NewOutbox(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first, err := domain.NewCompensationTask("order-1", "completion failed", now.Add(-time.Minute))
	require.NoError(t, err)
	second, err := domain.NewCompensationTask("order-2", "completion failed", now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, outbox.Enqueue(ctx, first))
	require.NoError(t, outbox.Enqueue(ctx, second))

	due, err := outbox.Due(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "order-1", due[0].OrderID)

	task := due[0]
	task.RecordFailure("still unavailable", now, time.Second, 5)
	require.NoError(t, outbox.Save(ctx, task))

	fetched, err := outbox.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.Attempts)
	assert.Equal(t, "still unavailable", fetched.LastError)
	assert.WithinDuration(t, now.Add(time.Second), fetched.NextAttemptAt, time.Millisecond)
}

func TestOutbox_EnqueueKeepsPendingTask(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPreordersPostgresContainer(t)
	defer cleanup()

	outbox := NewOutbox(db)
	ctx := context.Background()
	now := time.Now().UTC()

	task, err := domain.NewCompensationTask("order-1", "first", now)
	require.NoError(t, err)
	require.NoError(t, outbox.Enqueue(ctx, task))

	again, err := domain.NewCompensationTask("order-1", "second", now)
	require.NoError(t, err)
	require.NoError(t, outbox.Enqueue(ctx, again))

	fetched, err := outbox.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "first", fetched.Reason)

	fetched.Status = domain.TaskOrphaned
	require.NoError(t, outbox.Save(ctx, fetched))
	require.NoError(t, outbox.Enqueue(ctx, again))

	fetched, err = outbox.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "second", fetched.Reason)
	assert.Equal(t, domain.TaskPending, fetched.Status)

	orphaned, err := outbox.List(ctx, domain.TaskOrphaned)
	require.NoError(t, err)
	assert.Empty(t, orphaned)
}

func TestOutbox_MissingTask(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPreordersPostgresContainer(t)
	defer cleanup()

	outbox := NewOutbox(db)
	ctx := context.Background()

	_, err := outbox.Get(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrTaskNotFound)

	task, err := domain.NewCompensationTask("missing", "", time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, outbox.Save(ctx, task), ports.ErrTaskNotFound)
}

func TestJournal_AppendAndHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPreordersPostgresContainer(t)
	defer cleanup()

	journal := NewJournal(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, state := range []domain.SagaState{domain.SagaCompleting, domain.SagaCompensatingCancel} {
		require.NoError(t, journal.Append(ctx, domain.SagaStep{
			SagaID:     "saga-1",
			OrderID:    "order-1",
			State:      state,
			StatusCode: 503,
			Messages:   []string{"Balance service is temporarily unavailable"},
			OccurredAt: now,
		}))
	}
	require.NoError(t, journal.Append(ctx, domain.SagaStep{SagaID: "saga-2", State: domain.SagaValidating, OccurredAt: now}))

	history, err := journal.History(ctx, "saga-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.SagaCompleting, history[0].State)
	assert.Equal(t, domain.SagaCompensatingCancel, history[1].State)
	assert.Equal(t, []string{"Balance service is temporarily unavailable"}, history[1].Messages)
}
