package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/ledgersync/internal/core/lock"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements lock.Locker with SET NX PX.
type Locker struct {
	client *Client
}

// NewLocker creates a Redis-backed distributed locker.
func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

// Acquire attempts to take the named lock for ttl.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (lock.Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, l.client.lockKey(name), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &lease{client: l.client, name: name, token: token}, true, nil
}

type lease struct {
	client *Client
	name   string
	token  string
}

func (l *lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client.rdb, []string{l.client.lockKey(l.name)}, l.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.name, err)
	}
	return nil
}
