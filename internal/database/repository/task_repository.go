package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trayyy/trayyy/backend-go/internal/database/models"
)

// TaskRepository defines the interface for task data operations
type TaskRepository interface {
	Create(task *models.Task) error
	FindByID(id uuid.UUID) (*models.Task, error)

	// Status updates
	MarkProcessing(id uuid.UUID) error
	MarkCompleted(id uuid.UUID, outputBytes, durationMS int64) error
	MarkError(id uuid.UUID, errorMsg string, durationMS int64) error

	// Query operations
	ListByUser(userID uint, offset, limit int) ([]models.Task, int64, error)
	CountByUserSince(userID uint, since string) (int64, error)

	// Permission check helper
	IsOwner(taskID uuid.UUID, userID uint) (bool, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository instance
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

func (r *taskRepository) FindByID(id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.db.First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// ==================== Status Updates ====================

func (r *taskRepository) MarkProcessing(id uuid.UUID) error {
	return r.updateStatus(id, map[string]interface{}{
		"status": models.TaskStatusProcessing,
	})
}

func (r *taskRepository) MarkCompleted(id uuid.UUID, outputBytes, durationMS int64) error {
	return r.updateStatus(id, map[string]interface{}{
		"status":       models.TaskStatusCompleted,
		"output_bytes": outputBytes,
		"duration_ms":  durationMS,
	})
}

func (r *taskRepository) MarkError(id uuid.UUID, errorMsg string, durationMS int64) error {
	return r.updateStatus(id, map[string]interface{}{
		"status":        models.TaskStatusError,
		"error_message": errorMsg,
		"duration_ms":   durationMS,
	})
}

func (r *taskRepository) updateStatus(id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.Model(&models.Task{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ==================== Query Operations ====================

func (r *taskRepository) ListByUser(userID uint, offset, limit int) ([]models.Task, int64, error) {
	var tasks []models.Task
	var total int64

	baseQuery := r.db.Model(&models.Task{}).Where("user_id = ?", userID)

	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&tasks).Error

	return tasks, total, err
}

// CountByUserSince counts tasks for a user created on or after the given
// "YYYY-MM-DD" day key (UTC)
func (r *taskRepository) CountByUserSince(userID uint, since string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Task{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

// ==================== Permission Helper ====================

func (r *taskRepository) IsOwner(taskID uuid.UUID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Task{}).
		Where("id = ? AND user_id = ?", taskID, userID).
		Count(&count).Error
	return count > 0, err
}

// Repository errors for tasks
var (
	ErrTaskNotFound = errors.New("task not found")
)
