// Package memory implements the in-memory backend.Backend: a mapping from
// sub-queue identifier to an ordered, mutex-guarded sequence of messages.
// Ordinality is core-assigned.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/queuehub/queuehub/internal/backend"
	"github.com/queuehub/queuehub/internal/model"
)

// subQueue is a single ordered, mutex-free-at-the-leaf sequence; callers
// always hold Backend.mu for the duration of any access to it, so it
// needs no lock of its own.
type subQueue struct {
	records []model.Message // ascending by ID, ties broken by append order
}

// Backend is the in-memory Backend implementation.
type Backend struct {
	mu     sync.RWMutex
	queues map[string]*subQueue
}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{queues: make(map[string]*subQueue)}
}

func (b *Backend) OrdinalityPolicy() backend.OrdinalityPolicy { return backend.CoreAssigned }

func (b *Backend) Append(_ context.Context, record model.Message) (model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[record.SubQueue]
	if !ok {
		q = &subQueue{}
		b.queues[record.SubQueue] = q
	}
	q.records = append(q.records, record.Clone())
	return record, nil
}

func (b *Backend) RemoveByUUID(_ context.Context, uuid string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sqID, q := range b.queues {
		for i, r := range q.records {
			if r.UUID == uuid {
				q.records = append(q.records[:i], q.records[i+1:]...)
				if len(q.records) == 0 {
					delete(b.queues, sqID)
				}
				return 1, nil
			}
		}
	}
	return 0, nil
}

func (b *Backend) UpdateByUUID(_ context.Context, uuid string, record model.Message) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range b.queues {
		for i, r := range q.records {
			if r.UUID == uuid {
				updated := record.Clone()
				updated.ID = r.ID
				updated.SubQueue = r.SubQueue
				updated.UUID = r.UUID
				q.records[i] = updated
				return true, nil
			}
		}
	}
	return false, nil
}

func (b *Backend) FindByUUID(_ context.Context, uuid string) (model.Message, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, q := range b.queues {
		for _, r := range q.records {
			if r.UUID == uuid {
				return r.Clone(), true, nil
			}
		}
	}
	return model.Message{}, false, nil
}

func (b *Backend) FindSubQueueOf(_ context.Context, uuid string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sqID, q := range b.queues {
		for _, r := range q.records {
			if r.UUID == uuid {
				return sqID, true, nil
			}
		}
	}
	return "", false, nil
}

func (b *Backend) IterateSubQueue(_ context.Context, subQueueID string, filter model.Filter) ([]model.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.queues[subQueueID]
	if !ok {
		return nil, nil
	}
	out := make([]model.Message, 0, len(q.records))
	for _, r := range q.records {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) MaxIDOf(_ context.Context, subQueueID string) (int64, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.queues[subQueueID]
	if !ok || len(q.records) == 0 {
		return 0, false, nil
	}
	var max int64
	found := false
	for _, r := range q.records {
		if !found || r.ID > max {
			max = r.ID
			found = true
		}
	}
	return max, found, nil
}

func (b *Backend) SizeOf(_ context.Context, subQueueID string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.queues[subQueueID]
	if !ok {
		return 0, nil
	}
	return len(q.records), nil
}

func (b *Backend) DistinctSubQueues(_ context.Context) (map[string]struct{}, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]struct{}, len(b.queues))
	for sqID, q := range b.queues {
		if len(q.records) > 0 {
			out[sqID] = struct{}{}
		}
	}
	return out, nil
}

func (b *Backend) DeleteSubQueue(_ context.Context, subQueueID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[subQueueID]
	if !ok {
		return 0, nil
	}
	n := len(q.records)
	delete(b.queues, subQueueID)
	return n, nil
}

func (b *Backend) DeleteAll(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, q := range b.queues {
		total += len(q.records)
	}
	b.queues = make(map[string]*subQueue)
	return total, nil
}

func (b *Backend) Ping(_ context.Context) error { return nil }
