package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
)

var _ ports.SagaJournal = (*Journal)(nil)

// Journal appends saga transitions to PostgreSQL.
type Journal struct {
	db *gorm.DB
}

// NewJournal wires a PostgreSQL-backed journal. Caller manages DB lifecycle.
func NewJournal(db *gorm.DB) *Journal {
	journal := &Journal{db: db}
	if db != nil {
		_ = db.AutoMigrate(&stepRecord{})
	}
	return journal
}

type stepRecord struct {
	ID         int64          `gorm:"primaryKey;autoIncrement;column:id"`
	SagaID     string         `gorm:"column:saga_id;size:36;index"`
	OrderID    string         `gorm:"column:order_id;size:50;index"`
	State      string         `gorm:"column:state;type:varchar(32)"`
	StatusCode int            `gorm:"column:status_code"`
	Messages   pq.StringArray `gorm:"column:messages;type:text[]"`
	TraceID    string         `gorm:"column:trace_id;size:32"`
	SpanID     string         `gorm:"column:span_id;size:16"`
	OccurredAt time.Time      `gorm:"column:occurred_at;index"`
}

func (stepRecord) TableName() string { return "saga_steps" }

// Append stores one transition.
func (j *Journal) Append(ctx context.Context, step domain.SagaStep) error {
	if err := j.ensureDB(); err != nil {
		return err
	}
	record := stepRecord{
		SagaID:     step.SagaID,
		OrderID:    step.OrderID,
		State:      string(step.State),
		StatusCode: step.StatusCode,
		Messages:   pq.StringArray(append([]string(nil), step.Messages...)),
		TraceID:    step.TraceID,
		SpanID:     step.SpanID,
		OccurredAt: step.OccurredAt.UTC(),
	}
	return j.db.WithContext(ctx).Create(&record).Error
}

// History returns the transitions of one saga in insertion order.
func (j *Journal) History(ctx context.Context, sagaID string) ([]domain.SagaStep, error) {
	if err := j.ensureDB(); err != nil {
		return nil, err
	}
	var records []stepRecord
	if err := j.db.WithContext(ctx).Where("saga_id = ?", sagaID).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	steps := make([]domain.SagaStep, 0, len(records))
	for _, r := range records {
		steps = append(steps, domain.SagaStep{
			SagaID:     r.SagaID,
			OrderID:    r.OrderID,
			State:      domain.SagaState(r.State),
			StatusCode: r.StatusCode,
			Messages:   []string(r.Messages),
			TraceID:    r.TraceID,
			SpanID:     r.SpanID,
			OccurredAt: r.OccurredAt.UTC(),
		})
	}
	return steps, nil
}

func (j *Journal) ensureDB() error {
	if j == nil || j.db == nil {
		return errors.New("postgres saga journal not configured")
	}
	return nil
}
