package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const restrictedSetKey = "queuehub:restricted"

// SetStore is a Redis SET-backed backend.SetStore, used by the
// restriction registry.
type SetStore struct {
	rdb *redis.Client
	key string
}

// NewSetStore wraps an already-constructed Redis client. key is the SET's
// Redis key (distinct instances can share a client but use distinct keys).
func NewSetStore(rdb *redis.Client, key string) *SetStore {
	return &SetStore{rdb: rdb, key: key}
}

func (s *SetStore) Add(ctx context.Context, value string) error {
	if err := s.rdb.SAdd(ctx, s.key, value).Err(); err != nil {
		return fmt.Errorf("cache set store: add: %w", err)
	}
	return nil
}

func (s *SetStore) Remove(ctx context.Context, value string) (bool, error) {
	n, err := s.rdb.SRem(ctx, s.key, value).Result()
	if err != nil {
		return false, fmt.Errorf("cache set store: remove: %w", err)
	}
	return n > 0, nil
}

func (s *SetStore) Contains(ctx context.Context, value string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, s.key, value).Result()
	if err != nil {
		return false, fmt.Errorf("cache set store: contains: %w", err)
	}
	return ok, nil
}

func (s *SetStore) List(ctx context.Context) ([]string, error) {
	vals, err := s.rdb.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("cache set store: list: %w", err)
	}
	return vals, nil
}

func (s *SetStore) Clear(ctx context.Context) (int, error) {
	n, err := s.rdb.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache set store: card: %w", err)
	}
	if n > 0 {
		if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
			return 0, fmt.Errorf("cache set store: clear: %w", err)
		}
	}
	return int(n), nil
}

// ReservedValues returns the literal keys the cache backend uses for its
// own message-storage bookkeeping: none of these may be accepted as
// restricted sub-queue names, since the Backend variant and the SetStore
// variant share the same Redis keyspace prefix.
func (s *SetStore) ReservedValues() []string {
	return []string{"order", "seq", "idclaims", "uuidindex"}
}

func (s *SetStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache set store: ping: %w", err)
	}
	return nil
}
