// Package cache implements the key/value cache backend.Backend over Redis
// via github.com/redis/go-redis/v9 — the ecosystem's canonical Go client
// for this backend class (no example repo in the retrieval pack imports a
// Redis client directly; this choice is named, not grounded, per
// DESIGN.md). Each sub-queue is a Redis HASH of uuid -> serialized record
// plus a companion ZSET giving ordered iteration without relying on hash
// iteration order. Ordinality is core-assigned.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/queuehub/queuehub/internal/backend"
	"github.com/queuehub/queuehub/internal/model"
)

const keyPrefix = "queuehub:sq:"
const uuidIndexKey = "queuehub:uuidindex"

// Backend is the Redis-backed Backend implementation.
type Backend struct {
	rdb *redis.Client
}

// New wraps an already-constructed Redis client.
func New(rdb *redis.Client) *Backend { return &Backend{rdb: rdb} }

func (b *Backend) OrdinalityPolicy() backend.OrdinalityPolicy { return backend.CoreAssigned }

func dataKey(subQueue string) string   { return keyPrefix + subQueue }
func orderKey(subQueue string) string  { return keyPrefix + subQueue + ":order" }
func seqKey(subQueue string) string    { return keyPrefix + subQueue + ":seq" }
func claimsKey(subQueue string) string { return keyPrefix + subQueue + ":idclaims" }

func (b *Backend) Append(ctx context.Context, record model.Message) (model.Message, error) {
	// Claim the (subQueue, id) pair first: a concurrent writer that raced
	// the core's MaxIDOf read and picked the same id loses here and the
	// core retries with a freshly recomputed id. The claim is released
	// when the record is removed, so ids can be reused once a sub-queue
	// drains, matching the in-memory and relational backends.
	idStr := fmt.Sprintf("%d", record.ID)
	claimed, err := b.rdb.HSetNX(ctx, claimsKey(record.SubQueue), idStr, record.UUID).Result()
	if err != nil {
		return model.Message{}, fmt.Errorf("cache backend: claim id: %w", err)
	}
	if !claimed {
		return model.Message{}, fmt.Errorf("cache backend: %w", backend.ErrOrdinalityConflict)
	}

	seq, err := b.rdb.Incr(ctx, seqKey(record.SubQueue)).Result()
	if err != nil {
		return model.Message{}, fmt.Errorf("cache backend: seq: %w", err)
	}
	score := float64(record.ID) + float64(seq)*1e-9

	payload, err := json.Marshal(record)
	if err != nil {
		return model.Message{}, fmt.Errorf("cache backend: marshal: %w", err)
	}

	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, dataKey(record.SubQueue), record.UUID, payload)
	pipe.ZAdd(ctx, orderKey(record.SubQueue), redis.Z{Score: score, Member: record.UUID})
	pipe.HSet(ctx, uuidIndexKey, record.UUID, record.SubQueue)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.Message{}, fmt.Errorf("cache backend: append: %w", err)
	}
	return record, nil
}

func (b *Backend) RemoveByUUID(ctx context.Context, uuid string) (int, error) {
	subQueue, err := b.rdb.HGet(ctx, uuidIndexKey, uuid).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache backend: lookup: %w", err)
	}

	raw, err := b.rdb.HGet(ctx, dataKey(subQueue), uuid).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("cache backend: lookup existing: %w", err)
	}
	var existing model.Message
	if err == nil {
		_ = json.Unmarshal([]byte(raw), &existing)
	}

	pipe := b.rdb.TxPipeline()
	delHash := pipe.HDel(ctx, dataKey(subQueue), uuid)
	pipe.ZRem(ctx, orderKey(subQueue), uuid)
	pipe.HDel(ctx, uuidIndexKey, uuid)
	pipe.HDel(ctx, claimsKey(subQueue), fmt.Sprintf("%d", existing.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cache backend: remove: %w", err)
	}
	n, err := delHash.Result()
	if err != nil {
		return 0, fmt.Errorf("cache backend: remove: %w", err)
	}
	return int(n), nil
}

// UpdateByUUID overwrites the stored record under the same uuid in place,
// keeping its UUID, SubQueue and ID; the ordering ZSET entry is untouched.
func (b *Backend) UpdateByUUID(ctx context.Context, uuid string, record model.Message) (bool, error) {
	subQueue, err := b.rdb.HGet(ctx, uuidIndexKey, uuid).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache backend: lookup: %w", err)
	}

	existingRaw, err := b.rdb.HGet(ctx, dataKey(subQueue), uuid).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache backend: lookup existing: %w", err)
	}
	var existing model.Message
	if err := json.Unmarshal([]byte(existingRaw), &existing); err != nil {
		return false, fmt.Errorf("cache backend: unmarshal existing: %w", err)
	}

	updated := record
	updated.UUID = existing.UUID
	updated.SubQueue = existing.SubQueue
	updated.ID = existing.ID

	payload, err := json.Marshal(updated)
	if err != nil {
		return false, fmt.Errorf("cache backend: marshal: %w", err)
	}
	if err := b.rdb.HSet(ctx, dataKey(subQueue), uuid, payload).Err(); err != nil {
		return false, fmt.Errorf("cache backend: update: %w", err)
	}
	return true, nil
}

func (b *Backend) FindByUUID(ctx context.Context, uuid string) (model.Message, bool, error) {
	subQueue, err := b.rdb.HGet(ctx, uuidIndexKey, uuid).Result()
	if err == redis.Nil {
		return model.Message{}, false, nil
	}
	if err != nil {
		return model.Message{}, false, fmt.Errorf("cache backend: lookup: %w", err)
	}

	raw, err := b.rdb.HGet(ctx, dataKey(subQueue), uuid).Result()
	if err == redis.Nil {
		return model.Message{}, false, nil
	}
	if err != nil {
		return model.Message{}, false, fmt.Errorf("cache backend: find: %w", err)
	}
	var m model.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return model.Message{}, false, fmt.Errorf("cache backend: unmarshal: %w", err)
	}
	return m, true, nil
}

func (b *Backend) FindSubQueueOf(ctx context.Context, uuid string) (string, bool, error) {
	subQueue, err := b.rdb.HGet(ctx, uuidIndexKey, uuid).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache backend: lookup: %w", err)
	}
	return subQueue, true, nil
}

func (b *Backend) IterateSubQueue(ctx context.Context, subQueue string, filter model.Filter) ([]model.Message, error) {
	uuids, err := b.rdb.ZRange(ctx, orderKey(subQueue), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("cache backend: order: %w", err)
	}
	if len(uuids) == 0 {
		return nil, nil
	}

	raws, err := b.rdb.HMGet(ctx, dataKey(subQueue), uuids...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache backend: hmget: %w", err)
	}

	out := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue // evicted between ZRANGE and HMGET; tolerate
		}
		var m model.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("cache backend: unmarshal: %w", err)
		}
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (b *Backend) MaxIDOf(ctx context.Context, subQueue string) (int64, bool, error) {
	zs, err := b.rdb.ZRevRangeWithScores(ctx, orderKey(subQueue), 0, 0).Result()
	if err != nil {
		return 0, false, fmt.Errorf("cache backend: max id: %w", err)
	}
	if len(zs) == 0 {
		return 0, false, nil
	}
	return int64(math.Floor(zs[0].Score)), true, nil
}

func (b *Backend) SizeOf(ctx context.Context, subQueue string) (int, error) {
	n, err := b.rdb.ZCard(ctx, orderKey(subQueue)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache backend: size: %w", err)
	}
	return int(n), nil
}

func (b *Backend) DistinctSubQueues(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := b.rdb.Scan(ctx, cursor, keyPrefix+"*:order", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("cache backend: scan: %w", err)
		}
		for _, k := range keys {
			name := strings.TrimSuffix(strings.TrimPrefix(k, keyPrefix), ":order")
			out[name] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (b *Backend) DeleteSubQueue(ctx context.Context, subQueue string) (int, error) {
	uuids, err := b.rdb.HKeys(ctx, dataKey(subQueue)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache backend: keys: %w", err)
	}
	if len(uuids) == 0 {
		return 0, nil
	}

	pipe := b.rdb.TxPipeline()
	pipe.Del(ctx, dataKey(subQueue), orderKey(subQueue), seqKey(subQueue), claimsKey(subQueue))
	pipe.HDel(ctx, uuidIndexKey, uuids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cache backend: delete sub-queue: %w", err)
	}
	return len(uuids), nil
}

func (b *Backend) DeleteAll(ctx context.Context) (int, error) {
	subQueues, err := b.DistinctSubQueues(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for sq := range subQueues {
		n, err := b.DeleteSubQueue(ctx, sq)
		if err != nil {
			return total, err
		}
		total += n
	}
	b.rdb.Del(ctx, uuidIndexKey)
	return total, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache backend: ping: %w", err)
	}
	return nil
}
