package queue

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

// Queue is a durable FIFO job queue backed by a Redis list. Producers
// push to the head, consumers block-pop from the tail with a timeout.
// Delivery is at-least-once: a pop removes the job, so a consumer that
// crashes mid-processing loses no queued work but may have half-applied
// a job that gets re-enqueued manually.
type Queue struct {
	client *redis.Client
	name   string
}

// New creates a new queue client
func New(cfg config.RedisConfig, name string) (*Queue, error) {
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

	return &Queue{client: client, name: name}, nil
}

// NewWithClient creates a queue on an existing Redis client
func NewWithClient(client *redis.Client, name string) *Queue {
	return &Queue{client: client, name: name}
}

// Close closes the queue connection
func (q *Queue) Close() error {
	return q.client.Close()
}

// Push appends a job to the queue
func (q *Queue) Push(ctx context.Context, job *models.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LPush(ctx, q.name, body).Err(); err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}

	return nil
}

// Pop removes and returns the oldest job, blocking up to timeout.
// A nil job with a nil error means the timeout elapsed with the queue
// empty.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}

	// BRPop returns [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}

	var job models.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// Depth returns the number of jobs waiting in the queue
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return n, nil
}
