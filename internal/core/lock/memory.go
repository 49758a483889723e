package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is an in-process Locker for single-instance deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	seq   uint64
	clock func() time.Time
}

type memoryEntry struct {
	id      uint64
	expires time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryEntry),
		clock: time.Now,
	}
}

// Acquire takes the lock if it is free or its previous lease expired.
func (l *MemoryLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[name]; ok && now.Before(e.expires) {
		return nil, false, nil
	}
	l.seq++
	l.held[name] = memoryEntry{id: l.seq, expires: now.Add(ttl)}
	return &memoryLease{locker: l, name: name, id: l.seq}, true, nil
}

// Held reports whether name is currently locked.
func (l *MemoryLocker) Held(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.held[name]
	return ok && l.clock().Before(e.expires)
}

type memoryLease struct {
	locker *MemoryLocker
	name   string
	id     uint64
}

func (m *memoryLease) Release(ctx context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if e, ok := m.locker.held[m.name]; ok && e.id == m.id {
		delete(m.locker.held, m.name)
	}
	return nil
}
