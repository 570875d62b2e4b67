package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trayyy/trayyy/backend-go/internal/config"
)

// RedisClient wraps the redis client with helper methods for caching
// computed usage stats. The cache is strictly an accelerator: every method
// degrades to a miss on error and the durable store stays the source of
// truth.
type RedisClient struct {
	client *redis.Client
	logger *slog.Logger
	cfg    *config.Config
}

// NewRedisClient creates a new Redis client instance
func NewRedisClient(cfg *config.Config, logger *slog.Logger) (*RedisClient, error) {
	logger.Info("🔌 [Redis] Connecting to Redis...",
		"host", cfg.RedisHost,
		"port", cfg.RedisPort,
		"db", cfg.RedisDB,
	)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       int(cfg.RedisDB),
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("✅ [Redis] Redis connection established")

	return &RedisClient{
		client: client,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// NewRedisClientForTesting creates a Redis client with a provided redis.Client (for testing)
func NewRedisClientForTesting(client *redis.Client, cfg *config.Config, logger *slog.Logger) *RedisClient {
	return &RedisClient{
		client: client,
		logger: logger,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// statsKey generates a Redis key for a user's cached usage stats
func statsKey(userID uint) string {
	return fmt.Sprintf("usage:stats:%d", userID)
}

// GetCachedStats retrieves cached usage stats for a user. A cache miss and a
// Redis error both return (false, nil payload); the caller recomputes.
func (r *RedisClient) GetCachedStats(ctx context.Context, userID uint, out interface{}) (bool, error) {
	key := statsKey(userID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		r.logger.Error("❌ [Redis] Failed to get cached stats",
			"user_id", userID,
			"error", err,
		)
		return false, err
	}

	if err := json.Unmarshal(data, out); err != nil {
		r.logger.Warn("⚠️ [Redis] Failed to unmarshal cached stats, treating as miss",
			"user_id", userID,
			"error", err,
		)
		return false, nil
	}

	r.logger.Debug("📖 [Redis] Usage stats cache hit", "user_id", userID)

	return true, nil
}

// SetCachedStats stores computed usage stats with the configured TTL
func (r *RedisClient) SetCachedStats(ctx context.Context, userID uint, stats interface{}) error {
	key := statsKey(userID)

	data, err := json.Marshal(stats)
	if err != nil {
		r.logger.Error("❌ [Redis] Failed to marshal stats",
			"user_id", userID,
			"error", err,
		)
		return err
	}

	ttl := time.Duration(r.cfg.UsageStatsTTL) * time.Second
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		r.logger.Error("❌ [Redis] Failed to set cached stats",
			"user_id", userID,
			"error", err,
		)
		return err
	}

	r.logger.Debug("💾 [Redis] Stored usage stats",
		"user_id", userID,
		"ttl", ttl,
	)

	return nil
}

// InvalidateStats removes a user's cached stats after new usage is recorded
func (r *RedisClient) InvalidateStats(ctx context.Context, userID uint) error {
	key := statsKey(userID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("❌ [Redis] Failed to invalidate cached stats",
			"user_id", userID,
			"error", err,
		)
		return err
	}

	r.logger.Debug("🗑️ [Redis] Invalidated usage stats cache", "user_id", userID)

	return nil
}

// GetClient returns the underlying Redis client (for advanced use cases)
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}
