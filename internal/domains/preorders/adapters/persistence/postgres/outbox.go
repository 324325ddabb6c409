package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/ports"
)

var _ ports.CompensationOutbox = (*Outbox)(nil)

// Outbox persists compensation tasks in PostgreSQL using GORM.
type Outbox struct {
	db *gorm.DB
}

// NewOutbox wires a PostgreSQL-backed outbox. Caller manages DB lifecycle.
func NewOutbox(db *gorm.DB) *Outbox {
	outbox := &Outbox{db: db}
	if db != nil {
		_ = db.AutoMigrate(&taskRecord{})
	}
	return outbox
}

// taskRecord maps a compensation task to a relational row keyed by order id.
type taskRecord struct {
	OrderID       string    `gorm:"primaryKey;column:order_id;size:50"`
	Reason        string    `gorm:"column:reason"`
	Status        string    `gorm:"column:status;type:varchar(16);index:idx_compensation_due"`
	Attempts      int       `gorm:"column:attempts"`
	NextAttemptAt time.Time `gorm:"column:next_attempt_at;index:idx_compensation_due"`
	LastError     string    `gorm:"column:last_error"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (taskRecord) TableName() string { return "compensation_tasks" }

// Enqueue inserts a task. A pending task for the same order is left untouched
// while a finished or orphaned one is replaced.
func (o *Outbox) Enqueue(ctx context.Context, task *domain.CompensationTask) error {
	if err := o.ensureDB(); err != nil {
		return err
	}
	if task == nil {
		return errors.New("compensation task is nil")
	}
	record := toTaskRecord(task)
	return o.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "compensation_tasks.status <> ?", Vars: []any{string(domain.TaskPending)}},
			}},
			DoUpdates: clause.Assignments(map[string]any{
				"reason":          record.Reason,
				"status":          record.Status,
				"attempts":        record.Attempts,
				"next_attempt_at": record.NextAttemptAt,
				"last_error":      record.LastError,
				"created_at":      record.CreatedAt,
				"updated_at":      record.UpdatedAt,
			}),
		}).Create(&record).Error
}

// Due returns pending tasks whose next attempt is not after now, oldest first.
func (o *Outbox) Due(ctx context.Context, now time.Time, limit int) ([]*domain.CompensationTask, error) {
	if err := o.ensureDB(); err != nil {
		return nil, err
	}
	query := o.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", string(domain.TaskPending), now).
		Order("next_attempt_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []taskRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return toTasks(records), nil
}

// Save overwrites the mutable fields of an existing task.
func (o *Outbox) Save(ctx context.Context, task *domain.CompensationTask) error {
	if err := o.ensureDB(); err != nil {
		return err
	}
	if task == nil {
		return errors.New("compensation task is nil")
	}
	result := o.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("order_id = ?", task.OrderID).
		Updates(map[string]any{
			"status":          string(task.Status),
			"attempts":        task.Attempts,
			"next_attempt_at": task.NextAttemptAt,
			"last_error":      task.LastError,
			"updated_at":      task.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrTaskNotFound
	}
	return nil
}

// Get fetches a task by order id.
func (o *Outbox) Get(ctx context.Context, orderID string) (*domain.CompensationTask, error) {
	if err := o.ensureDB(); err != nil {
		return nil, err
	}
	var record taskRecord
	if err := o.db.WithContext(ctx).First(&record, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrTaskNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// List returns tasks with the given status, or all tasks when status is empty.
func (o *Outbox) List(ctx context.Context, status domain.TaskStatus) ([]*domain.CompensationTask, error) {
	if err := o.ensureDB(); err != nil {
		return nil, err
	}
	query := o.db.WithContext(ctx).Order("created_at")
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var records []taskRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return toTasks(records), nil
}

func (o *Outbox) ensureDB() error {
	if o == nil || o.db == nil {
		return errors.New("postgres compensation outbox not configured")
	}
	return nil
}

func toTaskRecord(task *domain.CompensationTask) taskRecord {
	return taskRecord{
		OrderID:       task.OrderID,
		Reason:        task.Reason,
		Status:        string(task.Status),
		Attempts:      task.Attempts,
		NextAttemptAt: task.NextAttemptAt.UTC(),
		LastError:     task.LastError,
		CreatedAt:     task.CreatedAt.UTC(),
		UpdatedAt:     task.UpdatedAt.UTC(),
	}
}

func (r taskRecord) toDomain() *domain.CompensationTask {
	return &domain.CompensationTask{
		OrderID:       r.OrderID,
		Reason:        r.Reason,
		Status:        domain.TaskStatus(r.Status),
		Attempts:      r.Attempts,
		NextAttemptAt: r.NextAttemptAt.UTC(),
		LastError:     r.LastError,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func toTasks(records []taskRecord) []*domain.CompensationTask {
	tasks := make([]*domain.CompensationTask, 0, len(records))
	for i := range records {
		tasks = append(tasks, records[i].toDomain())
	}
	return tasks
}
