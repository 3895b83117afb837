package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clipforge/internal/config"
	"clipforge/pkg/models"
)

// Cache provides Redis-backed caching of hot clip rows plus the
// persisted last-run state of scheduled tasks.
type Cache struct {
	client *redis.Client
}

// New creates a new cache instance
func New(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewWithClient creates a cache on an existing Redis client
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Clip cache operations

// SetClip caches a clip row
func (c *Cache) SetClip(ctx context.Context, clip *models.Clip, ttl time.Duration) error {
	data, err := json.Marshal(clip)
	if err != nil {
		return fmt.Errorf("failed to marshal clip: %w", err)
	}

	key := fmt.Sprintf("clip:%s", clip.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetClip retrieves a clip from cache; a nil clip means a cache miss
func (c *Cache) GetClip(ctx context.Context, clipID string) (*models.Clip, error) {
	key := fmt.Sprintf("clip:%s", clipID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get clip from cache: %w", err)
	}

	var clip models.Clip
	if err := json.Unmarshal(data, &clip); err != nil {
		return nil, fmt.Errorf("failed to unmarshal clip: %w", err)
	}

	return &clip, nil
}

// DeleteClip removes a clip from cache
func (c *Cache) DeleteClip(ctx context.Context, clipID string) error {
	key := fmt.Sprintf("clip:%s", clipID)
	return c.client.Del(ctx, key).Err()
}

// Scheduler state

// LastRun returns the persisted last-run time of a scheduled task.
// The second return is false when the task has never run.
func (c *Cache) LastRun(ctx context.Context, task string) (time.Time, bool, error) {
	key := fmt.Sprintf("schedule:lastrun:%s", task)
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last run: %w", err)
	}

	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse last run: %w", err)
	}

	return t, true, nil
}

// SetLastRun persists the last-run time of a scheduled task
func (c *Cache) SetLastRun(ctx context.Context, task string, t time.Time) error {
	key := fmt.Sprintf("schedule:lastrun:%s", task)
	if err := c.client.Set(ctx, key, t.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("failed to set last run: %w", err)
	}
	return nil
}
