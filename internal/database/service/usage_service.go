package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/trayyy/trayyy/backend-go/internal/config"
	"github.com/trayyy/trayyy/backend-go/internal/database"
	"github.com/trayyy/trayyy/backend-go/internal/database/models"
	"github.com/trayyy/trayyy/backend-go/internal/database/repository"
	"github.com/trayyy/trayyy/backend-go/internal/metrics"
	"github.com/trayyy/trayyy/backend-go/internal/tools"
)

// DailyCounter is the fast-path daily task counter the service leans on.
// middleware.RateLimiter satisfies it; declaring it here keeps the service
// layer from importing the HTTP middleware package.
type DailyCounter interface {
	CheckDailyLimit(ctx context.Context, userID uint, limits config.PlanLimits) (bool, int64, int64, error)
	IncrementDailyCount(ctx context.Context, userID uint) error
	GetRemainingTasks(ctx context.Context, userID uint, limits config.PlanLimits) (int64, error)
}

// DailyLimitResult is the outcome of a daily-limit check
type DailyLimitResult struct {
	CanProceed   bool  `json:"can_proceed"`
	CurrentUsage int64 `json:"current_usage"`
	Limit        int64 `json:"limit"` // 0 = unlimited
}

// UserStats aggregates a user's current usage for the account page
type UserStats struct {
	PlanTier   config.PlanTier          `json:"plan_tier"`
	TodayUsage int64                    `json:"today_usage"`
	DailyLimit int64                    `json:"daily_limit"` // 0 = unlimited
	Month      string                   `json:"month"`
	Monthly    repository.MonthlyTotals `json:"monthly"`
	ByTool     []models.UsageRecord     `json:"by_tool"`
}

// UsageService is the usage accounting layer. Reads fail open (a broken
// counter store never blocks a user) and writes are best-effort telemetry:
// callers report errors but never roll back the job outcome over them.
type UsageService interface {
	RecordUsage(ctx context.Context, userID uint, tool tools.Tool, fileCount int, totalBytes int64, duration time.Duration, succeeded bool) error
	CheckDailyLimit(ctx context.Context, userID uint, tier config.PlanTier) (*DailyLimitResult, error)
	GetUserStats(ctx context.Context, userID uint, tier config.PlanTier) (*UserStats, error)
}

type usageService struct {
	usageRepo   repository.UsageRepository
	rateLimiter DailyCounter
	cache       *database.RedisClient
	logger      *slog.Logger
}

// NewUsageService creates a new usage service instance. cache may be nil
// when Redis is unavailable; stats are then always recomputed.
func NewUsageService(
	usageRepo repository.UsageRepository,
	rateLimiter DailyCounter,
	cache *database.RedisClient,
	logger *slog.Logger,
) UsageService {
	return &usageService{
		usageRepo:   usageRepo,
		rateLimiter: rateLimiter,
		cache:       cache,
		logger:      logger,
	}
}

func (s *usageService) RecordUsage(ctx context.Context, userID uint, tool tools.Tool, fileCount int, totalBytes int64, duration time.Duration, succeeded bool) error {
	now := time.Now()

	rec := &models.UsageRecord{
		UserID:     userID,
		ToolID:     tool.ID,
		ToolName:   tool.Name,
		Bucket:     models.MonthBucket(now),
		FileCount:  int64(fileCount),
		TotalBytes: totalBytes,
		DurationMS: duration.Milliseconds(),
		LastUsedAt: now,
	}
	if succeeded {
		rec.SuccessCount = 1
	} else {
		rec.ErrorCount = 1
	}

	// Durable monthly per-tool record; the store serializes concurrent
	// increments for the same key
	var firstErr error
	if err := s.usageRepo.IncrementMonthly(rec); err != nil {
		s.logger.Error("❌ [UsageService] Failed to record monthly usage",
			"user_id", userID,
			"tool", tool.ID,
			"error", err,
		)
		firstErr = err
	}

	// Durable daily counter
	if err := s.usageRepo.IncrementDaily(userID, models.DayBucket(now)); err != nil {
		s.logger.Error("❌ [UsageService] Failed to record daily usage",
			"user_id", userID,
			"error", err,
		)
		if firstErr == nil {
			firstErr = err
		}
	}

	// Fast-path counter; a failure here only costs check speed
	if err := s.rateLimiter.IncrementDailyCount(ctx, userID); err != nil {
		s.logger.Warn("⚠️ [UsageService] Failed to bump fast daily counter",
			"user_id", userID,
			"error", err,
		)
	}

	// Stale stats are worse than recomputed stats
	if s.cache != nil {
		if err := s.cache.InvalidateStats(ctx, userID); err != nil {
			s.logger.Warn("⚠️ [UsageService] Failed to invalidate stats cache",
				"user_id", userID,
				"error", err,
			)
		}
	}

	metrics.TaskBytesProcessed.WithLabelValues(tool.ID).Add(float64(totalBytes))

	s.logger.Debug("📊 [UsageService] Usage recorded",
		"user_id", userID,
		"tool", tool.ID,
		"file_count", fileCount,
		"total_bytes", totalBytes,
		"succeeded", succeeded,
	)

	return firstErr
}

// CheckDailyLimit prefers the Redis counter and falls back to the durable
// daily_usage row when Redis errors. If the durable store errors too, the
// check fails open: availability is deliberately favored over enforcement.
func (s *usageService) CheckDailyLimit(ctx context.Context, userID uint, tier config.PlanTier) (*DailyLimitResult, error) {
	limits := config.GetPlanLimits(tier)

	if limits.MaxDailyTasks <= 0 {
		return &DailyLimitResult{CanProceed: true, CurrentUsage: 0, Limit: 0}, nil
	}

	allowed, used, limit, err := s.rateLimiter.CheckDailyLimit(ctx, userID, limits)
	if err == nil {
		return &DailyLimitResult{CanProceed: allowed, CurrentUsage: used, Limit: limit}, nil
	}

	s.logger.Warn("⚠️ [UsageService] Fast daily counter unavailable, using durable counter",
		"user_id", userID,
		"error", err,
	)

	used, err = s.usageRepo.GetDailyTasks(userID, models.DayBucket(time.Now()))
	if err != nil {
		// Usage unknown: assume zero rather than block the user
		s.logger.Error("❌ [UsageService] Durable daily counter unavailable, failing open",
			"user_id", userID,
			"error", err,
		)
		return &DailyLimitResult{CanProceed: true, CurrentUsage: 0, Limit: int64(limits.MaxDailyTasks)}, nil
	}

	return &DailyLimitResult{
		CanProceed:   used < int64(limits.MaxDailyTasks),
		CurrentUsage: used,
		Limit:        int64(limits.MaxDailyTasks),
	}, nil
}

func (s *usageService) GetUserStats(ctx context.Context, userID uint, tier config.PlanTier) (*UserStats, error) {
	// Cache-aside fast path
	if s.cache != nil {
		var cached UserStats
		if hit, err := s.cache.GetCachedStats(ctx, userID, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	now := time.Now()
	limits := config.GetPlanLimits(tier)

	daily, err := s.CheckDailyLimit(ctx, userID, tier)
	if err != nil {
		return nil, err
	}

	bucket := models.MonthBucket(now)

	totals, err := s.usageRepo.MonthlyTotals(userID, bucket)
	if err != nil {
		// Usage unknown reads as zero, never as a hard failure
		s.logger.Error("❌ [UsageService] Failed to read monthly totals, assuming zero",
			"user_id", userID,
			"error", err,
		)
		totals = &repository.MonthlyTotals{}
	}

	byTool, err := s.usageRepo.ListMonthly(userID, bucket)
	if err != nil {
		s.logger.Error("❌ [UsageService] Failed to list monthly usage, assuming empty",
			"user_id", userID,
			"error", err,
		)
		byTool = []models.UsageRecord{}
	}

	dailyLimit := int64(limits.MaxDailyTasks)
	if dailyLimit < 0 {
		dailyLimit = 0
	}

	stats := &UserStats{
		PlanTier:   tier,
		TodayUsage: daily.CurrentUsage,
		DailyLimit: dailyLimit,
		Month:      bucket,
		Monthly:    *totals,
		ByTool:     byTool,
	}

	if s.cache != nil {
		if err := s.cache.SetCachedStats(ctx, userID, stats); err != nil {
			s.logger.Warn("⚠️ [UsageService] Failed to cache stats", "user_id", userID, "error", err)
		}
	}

	return stats, nil
}
