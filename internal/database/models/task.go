package models

import (
	"database/sql/driver"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus represents the processing status of a conversion task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusError      TaskStatus = "ERROR"
)

// Scan implements the sql.Scanner interface for TaskStatus
func (s *TaskStatus) Scan(value interface{}) error {
	if value == nil {
		*s = TaskStatusPending
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*s = TaskStatus(v)
	case string:
		*s = TaskStatus(v)
	default:
		return errors.New("invalid task status type")
	}
	return nil
}

// Value implements the driver.Valuer interface for TaskStatus
func (s TaskStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Task represents one run of a conversion tool for a user. The row is the
// durable record of the job; live progress lives only in the in-memory
// tracker while the task is running.
type Task struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uint           `gorm:"not null;index" json:"user_id"`
	ToolID       string         `gorm:"not null;size:64;index" json:"tool_id"`
	ToolName     string         `gorm:"not null;size:255" json:"tool_name"`
	Status       TaskStatus     `gorm:"type:task_status;not null;default:PENDING;index" json:"status"`
	FileCount    int            `gorm:"default:0" json:"file_count"`
	InputBytes   int64          `gorm:"default:0" json:"input_bytes"`
	PageCount    int            `gorm:"default:0" json:"page_count"`
	OutputBytes  int64          `gorm:"default:0" json:"output_bytes"`
	DurationMS   int64          `gorm:"default:0" json:"duration_ms"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName overrides the table name
func (Task) TableName() string {
	return "tasks"
}

// BeforeCreate hook to generate UUID if not set
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsRunning returns true while the task has not reached a terminal status
func (t *Task) IsRunning() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusProcessing
}

// Succeeded returns true if the task finished without error
func (t *Task) Succeeded() bool {
	return t.Status == TaskStatusCompleted
}

// Failed returns true if the task ended in error
func (t *Task) Failed() bool {
	return t.Status == TaskStatusError
}
