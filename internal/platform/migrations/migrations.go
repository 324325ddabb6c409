package migrations

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Run applies the schema for the pre-order saga stores.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&compensationTaskRecord{},
		&sagaStepRecord{},
	)
}

// Compensation task schema mirrors the preorders Postgres outbox.
type compensationTaskRecord struct {
	OrderID       string    `gorm:"primaryKey;column:order_id;size:50"`
	Reason        string    `gorm:"column:reason"`
	Status        string    `gorm:"column:status;type:varchar(16);index:idx_compensation_due"`
	Attempts      int       `gorm:"column:attempts"`
	NextAttemptAt time.Time `gorm:"column:next_attempt_at;index:idx_compensation_due"`
	LastError     string    `gorm:"column:last_error"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (compensationTaskRecord) TableName() string { return "compensation_tasks" }

// Saga step schema mirrors the preorders Postgres journal.
type sagaStepRecord struct {
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

func (sagaStepRecord) TableName() string { return "saga_steps" }
