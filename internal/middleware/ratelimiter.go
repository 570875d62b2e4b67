package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trayyy/trayyy/backend-go/internal/config"
)

// RateLimiter is the fast-path daily task counter backed by Redis. The
// counter key embeds the UTC day, so the count resets implicitly at
// rollover; the durable daily_usage table remains the source of truth and
// any Redis failure here must be treated as "counter unknown".
type RateLimiter interface {
	// CheckDailyLimit checks if user has exceeded the plan's daily task limit
	// Returns: allowed bool, used int64, limit int64, error
	CheckDailyLimit(ctx context.Context, userID uint, limits config.PlanLimits) (bool, int64, int64, error)

	// IncrementDailyCount increments the daily task count for a user
	IncrementDailyCount(ctx context.Context, userID uint) error

	// GetRemainingTasks returns remaining tasks for today (-1 = unlimited)
	GetRemainingTasks(ctx context.Context, userID uint, limits config.PlanLimits) (int64, error)

	// Close closes the Redis connection
	Close() error
}

type redisRateLimiter struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRateLimiter creates a new Redis-based rate limiter
func NewRateLimiter(cfg *config.Config, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       int(cfg.RedisDB),
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("❌ [RateLimiter] Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("✅ [RateLimiter] Connected to Redis",
		"host", cfg.RedisHost,
		"port", cfg.RedisPort,
	)

	return &redisRateLimiter{
		client: client,
		logger: logger,
	}, nil
}

// NewRateLimiterForTesting creates a rate limiter with a provided redis.Client (for testing)
func NewRateLimiterForTesting(client *redis.Client, logger *slog.Logger) RateLimiter {
	return &redisRateLimiter{
		client: client,
		logger: logger,
	}
}

// dailyKey generates the Redis key for daily task count
// Format: rate:daily:{userID}:{YYYY-MM-DD}
func dailyKey(userID uint) string {
	today := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("rate:daily:%d:%s", userID, today)
}

func (r *redisRateLimiter) CheckDailyLimit(ctx context.Context, userID uint, limits config.PlanLimits) (bool, int64, int64, error) {
	// If limit is 0 or negative, unlimited
	if limits.MaxDailyTasks <= 0 {
		return true, 0, 0, nil
	}

	key := dailyKey(userID)
	count, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		// Key doesn't exist, user hasn't run any tasks today
		return true, 0, int64(limits.MaxDailyTasks), nil
	}
	if err != nil {
		r.logger.Error("❌ [RateLimiter] Failed to get daily count", "error", err, "user_id", userID)
		// On error, allow the request but surface it so the caller can fall
		// back to the durable counter
		return true, 0, int64(limits.MaxDailyTasks), err
	}

	allowed := count < int64(limits.MaxDailyTasks)
	return allowed, count, int64(limits.MaxDailyTasks), nil
}

func (r *redisRateLimiter) IncrementDailyCount(ctx context.Context, userID uint) error {
	key := dailyKey(userID)

	pipe := r.client.Pipeline()

	// Increment the counter
	pipe.Incr(ctx, key)

	// Expire at midnight UTC so the counter resets with the day key
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	ttl := midnight.Sub(now)

	pipe.Expire(ctx, key, ttl)

	_, err := pipe.Exec(ctx)
	if err != nil {
		r.logger.Error("❌ [RateLimiter] Failed to increment daily count", "error", err, "user_id", userID)
		return err
	}

	return nil
}

func (r *redisRateLimiter) GetRemainingTasks(ctx context.Context, userID uint, limits config.PlanLimits) (int64, error) {
	// If limit is 0 or negative, unlimited
	if limits.MaxDailyTasks <= 0 {
		return -1, nil // -1 indicates unlimited
	}

	key := dailyKey(userID)
	count, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return int64(limits.MaxDailyTasks), nil
	}
	if err != nil {
		return 0, err
	}

	remaining := int64(limits.MaxDailyTasks) - count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

func (r *redisRateLimiter) Close() error {
	return r.client.Close()
}

// NoOpRateLimiter stands in when Redis is not available. It holds no
// counts, so every check reports the counter as unknown; callers then
// count from the durable daily_usage table instead of skipping the limit.
type NoOpRateLimiter struct {
	logger *slog.Logger
}

// NewNoOpRateLimiter creates a no-op rate limiter
func NewNoOpRateLimiter(logger *slog.Logger) RateLimiter {
	logger.Warn("⚠️ [RateLimiter] Using no-op rate limiter - daily counts come from the durable store")
	return &NoOpRateLimiter{logger: logger}
}

func (r *NoOpRateLimiter) CheckDailyLimit(ctx context.Context, userID uint, limits config.PlanLimits) (bool, int64, int64, error) {
	return true, 0, int64(limits.MaxDailyTasks), ErrCounterUnavailable
}

func (r *NoOpRateLimiter) IncrementDailyCount(ctx context.Context, userID uint) error {
	return nil
}

func (r *NoOpRateLimiter) GetRemainingTasks(ctx context.Context, userID uint, limits config.PlanLimits) (int64, error) {
	return 0, ErrCounterUnavailable
}

func (r *NoOpRateLimiter) Close() error {
	return nil
}

// ==================== Errors ====================

// ErrCounterUnavailable reports that no fast counter is backing the
// limiter; the caller should consult the durable daily counter.
var ErrCounterUnavailable = errors.New("daily counter unavailable")
