package models

import "time"

// UsageRecord accumulates one user's activity with one tool inside one
// monthly bucket ("YYYY-MM"). At most one row exists per (user, tool,
// bucket); every update is an atomic increment upsert, never a replacement.
// Rows are created on first use in a bucket and never deleted by the system.
type UsageRecord struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_usage_user_tool_bucket" json:"user_id"`
	ToolID       string    `gorm:"not null;size:64;uniqueIndex:idx_usage_user_tool_bucket" json:"tool_id"`
	Bucket       string    `gorm:"not null;size:7;uniqueIndex:idx_usage_user_tool_bucket" json:"bucket"`
	ToolName     string    `gorm:"not null;size:255" json:"tool_name"`
	FileCount    int64     `gorm:"not null;default:0" json:"file_count"`
	TotalBytes   int64     `gorm:"not null;default:0" json:"total_bytes"`
	DurationMS   int64     `gorm:"not null;default:0" json:"duration_ms"`
	SuccessCount int64     `gorm:"not null;default:0" json:"success_count"`
	ErrorCount   int64     `gorm:"not null;default:0" json:"error_count"`
	LastUsedAt   time.Time `gorm:"not null" json:"last_used_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (UsageRecord) TableName() string {
	return "usage_records"
}

// DailyUsage is the durable per-(user, day) task counter behind the Redis
// fast path. The day key is "YYYY-MM-DD" in UTC; rollover is implicit in
// the key, not a scheduled reset.
type DailyUsage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_daily_usage_user_day" json:"user_id"`
	Day       string    `gorm:"not null;size:10;uniqueIndex:idx_daily_usage_user_day" json:"day"`
	TasksUsed int64     `gorm:"not null;default:0" json:"tasks_used"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (DailyUsage) TableName() string {
	return "daily_usage"
}

// MonthBucket formats a time as the monthly usage bucket key
func MonthBucket(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// DayBucket formats a time as the daily usage bucket key
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
