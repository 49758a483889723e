package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/infra/storage"
)

// advanceScript stores ARGV[1] only when it exceeds the current value.
var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call("HGET", KEYS[1], "ledger_seq") or "-1")
if tonumber(ARGV[1]) > cur then
	redis.call("HSET", KEYS[1], "ledger_seq", ARGV[1], "updated_at", ARGV[2])
	redis.call("SADD", KEYS[2], ARGV[3])
	return 1
end
return 0
`)

// CheckpointRepo implements storage.CheckpointRepository using Redis hashes.
type CheckpointRepo struct {
	client *Client
}

// NewCheckpointRepo creates a Redis-backed checkpoint repository.
func NewCheckpointRepo(client *Client) *CheckpointRepo {
	return &CheckpointRepo{client: client}
}

func (r *CheckpointRepo) Get(ctx context.Context, contractAddress string) (*domain.Checkpoint, error) {
	vals, err := r.client.rdb.HGetAll(ctx, r.client.checkpointKey(contractAddress)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}
	if len(vals) == 0 {
		return nil, storage.ErrNotFound
	}
	return parseCheckpoint(contractAddress, vals)
}

func parseCheckpoint(contractAddress string, vals map[string]string) (*domain.Checkpoint, error) {
	seq, err := strconv.ParseUint(vals["ledger_seq"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint for %s: %w", contractAddress, err)
	}
	cp := &domain.Checkpoint{ContractAddress: contractAddress, LedgerSeq: seq}
	if ts, err := strconv.ParseInt(vals["updated_at"], 10, 64); err == nil {
		cp.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	return cp, nil
}

func (r *CheckpointRepo) Advance(ctx context.Context, contractAddress string, ledgerSeq uint64) error {
	err := advanceScript.Run(ctx, r.client.rdb,
		[]string{r.client.checkpointKey(contractAddress), r.client.checkpointIndexKey()},
		strconv.FormatUint(ledgerSeq, 10), time.Now().Unix(), contractAddress,
	).Err()
	if err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	return nil
}

func (r *CheckpointRepo) Reset(ctx context.Context, contractAddress string, ledgerSeq uint64) error {
	pipe := r.client.rdb.TxPipeline()
	pipe.HSet(ctx, r.client.checkpointKey(contractAddress),
		"ledger_seq", strconv.FormatUint(ledgerSeq, 10),
		"updated_at", time.Now().Unix())
	pipe.SAdd(ctx, r.client.checkpointIndexKey(), contractAddress)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	return nil
}

func (r *CheckpointRepo) List(ctx context.Context) ([]*domain.Checkpoint, error) {
	addrs, err := r.client.rdb.SMembers(ctx, r.client.checkpointIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}
	sort.Strings(addrs)
	out := make([]*domain.Checkpoint, 0, len(addrs))
	for _, addr := range addrs {
		cp, err := r.Get(ctx, addr)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// MarkerRepo implements storage.MarkerRepository with expiring keys.
type MarkerRepo struct {
	client *Client
}

// NewMarkerRepo creates a Redis-backed marker repository.
func NewMarkerRepo(client *Client) *MarkerRepo {
	return &MarkerRepo{client: client}
}

func (r *MarkerRepo) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	n, err := r.client.rdb.Exists(ctx, r.client.markerKey(txHash)).Result()
	if err != nil {
		return false, fmt.Errorf("exists failed: %w", err)
	}
	return n > 0, nil
}

func (r *MarkerRepo) MarkProcessed(ctx context.Context, txHash string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.rdb.Set(ctx, r.client.markerKey(txHash), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("set marker: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op; Redis evicts expired keys itself.
func (r *MarkerRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
