package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// JobQueue is a FIFO of job envelopes stored in Redis lists.
type JobQueue struct {
	client *Client
}

// NewJobQueue creates a Redis list-backed job queue.
func NewJobQueue(client *Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) listKey(name string) string {
	return q.client.key("queue", name)
}

func (q *JobQueue) deadKey(name string) string {
	return q.client.key("queue", name, "dead")
}

// Push appends env to the named queue.
func (q *JobQueue) Push(ctx context.Context, name string, env *domain.JobEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, q.listKey(name), data).Err(); err != nil {
		return fmt.Errorf("rpush failed: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next job. It returns nil, nil on timeout.
func (q *JobQueue) Pop(ctx context.Context, name string, timeout time.Duration) (*domain.JobEnvelope, error) {
	res, err := q.client.rdb.BLPop(ctx, timeout, q.listKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blpop failed: %w", err)
	}
	// res is [key, value]
	var env domain.JobEnvelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &env, nil
}

// DeadLetter parks a job that exhausted its attempts.
func (q *JobQueue) DeadLetter(ctx context.Context, name string, env *domain.JobEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, q.deadKey(name), data).Err(); err != nil {
		return fmt.Errorf("rpush dead letter failed: %w", err)
	}
	return nil
}

// Len returns the number of pending and dead jobs in a queue.
func (q *JobQueue) Len(ctx context.Context, name string) (pending, dead int64, err error) {
	pipe := q.client.rdb.Pipeline()
	p := pipe.LLen(ctx, q.listKey(name))
	d := pipe.LLen(ctx, q.deadKey(name))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("llen failed: %w", err)
	}
	return p.Val(), d.Val(), nil
}
