package queue

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	mu      sync.Mutex
	pending map[string][]*domain.JobEnvelope
	dead    map[string][]*domain.JobEnvelope
	wake    chan struct{}
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		pending: make(map[string][]*domain.JobEnvelope),
		dead:    make(map[string][]*domain.JobEnvelope),
		wake:    make(chan struct{}),
	}
}

func (q *MemoryQueue) Push(_ context.Context, name string, env *domain.JobEnvelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *env
	q.pending[name] = append(q.pending[name], &cp)
	close(q.wake)
	q.wake = make(chan struct{})
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, name string, timeout time.Duration) (*domain.JobEnvelope, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if jobs := q.pending[name]; len(jobs) > 0 {
			env := jobs[0]
			q.pending[name] = jobs[1:]
			q.mu.Unlock()
			return env, nil
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wake:
		}
	}
}

func (q *MemoryQueue) DeadLetter(_ context.Context, name string, env *domain.JobEnvelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *env
	q.dead[name] = append(q.dead[name], &cp)
	return nil
}

// Len returns the number of pending and dead jobs in a queue.
func (q *MemoryQueue) Len(_ context.Context, name string) (pending, dead int64, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending[name])), int64(len(q.dead[name])), nil
}

// Dead returns dead lettered jobs of a queue.
func (q *MemoryQueue) Dead(name string) []*domain.JobEnvelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*domain.JobEnvelope(nil), q.dead[name]...)
}
