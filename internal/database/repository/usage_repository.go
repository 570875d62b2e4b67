package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trayyy/trayyy/backend-go/internal/database/models"
)

// MonthlyTotals aggregates a user's usage across tools for one monthly bucket
type MonthlyTotals struct {
	FileCount    int64 `json:"file_count"`
	TotalBytes   int64 `json:"total_bytes"`
	DurationMS   int64 `json:"duration_ms"`
	SuccessCount int64 `json:"success_count"`
	ErrorCount   int64 `json:"error_count"`
}

// UsageRepository defines the interface for usage accounting data operations.
// All increments are upserts pushed down to the database (ON CONFLICT DO
// UPDATE with column arithmetic) so concurrent writers for the same key are
// serialized by the store, never by application-level read-modify-write.
type UsageRepository interface {
	IncrementMonthly(rec *models.UsageRecord) error
	IncrementDaily(userID uint, day string) error

	FindMonthly(userID uint, toolID, bucket string) (*models.UsageRecord, error)
	ListMonthly(userID uint, bucket string) ([]models.UsageRecord, error)
	MonthlyTotals(userID uint, bucket string) (*MonthlyTotals, error)
	GetDailyTasks(userID uint, day string) (int64, error)
}

type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository instance
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

// IncrementMonthly creates the (user, tool, bucket) record or atomically adds
// the record's deltas onto the existing row
func (r *usageRepository) IncrementMonthly(rec *models.UsageRecord) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "tool_id"}, {Name: "bucket"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"file_count":    gorm.Expr("file_count + ?", rec.FileCount),
			"total_bytes":   gorm.Expr("total_bytes + ?", rec.TotalBytes),
			"duration_ms":   gorm.Expr("duration_ms + ?", rec.DurationMS),
			"success_count": gorm.Expr("success_count + ?", rec.SuccessCount),
			"error_count":   gorm.Expr("error_count + ?", rec.ErrorCount),
			"last_used_at":  rec.LastUsedAt,
			"updated_at":    time.Now(),
		}),
	}).Create(rec).Error
}

// IncrementDaily bumps the durable (user, day) task counter by one
func (r *usageRepository) IncrementDaily(userID uint, day string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"tasks_used": gorm.Expr("tasks_used + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&models.DailyUsage{
		UserID:    userID,
		Day:       day,
		TasksUsed: 1,
	}).Error
}

func (r *usageRepository) FindMonthly(userID uint, toolID, bucket string) (*models.UsageRecord, error) {
	var rec models.UsageRecord
	err := r.db.Where("user_id = ? AND tool_id = ? AND bucket = ?", userID, toolID, bucket).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUsageRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *usageRepository) ListMonthly(userID uint, bucket string) ([]models.UsageRecord, error) {
	var recs []models.UsageRecord
	err := r.db.Where("user_id = ? AND bucket = ?", userID, bucket).
		Order("tool_id").
		Find(&recs).Error
	return recs, err
}

// MonthlyTotals sums a user's usage across every tool in the bucket. A user
// with no records yet gets zero totals, not an error.
func (r *usageRepository) MonthlyTotals(userID uint, bucket string) (*MonthlyTotals, error) {
	var totals MonthlyTotals
	err := r.db.Model(&models.UsageRecord{}).
		Select(
			"COALESCE(SUM(file_count), 0) AS file_count, " +
				"COALESCE(SUM(total_bytes), 0) AS total_bytes, " +
				"COALESCE(SUM(duration_ms), 0) AS duration_ms, " +
				"COALESCE(SUM(success_count), 0) AS success_count, " +
				"COALESCE(SUM(error_count), 0) AS error_count",
		).
		Where("user_id = ? AND bucket = ?", userID, bucket).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// GetDailyTasks reads the durable daily counter; a missing row means zero
func (r *usageRepository) GetDailyTasks(userID uint, day string) (int64, error) {
	var usage models.DailyUsage
	err := r.db.Where("user_id = ? AND day = ?", userID, day).First(&usage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return usage.TasksUsed, nil
}

// Repository errors for usage records
var (
	ErrUsageRecordNotFound = errors.New("usage record not found")
)
