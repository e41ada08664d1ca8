// Package backend defines the narrow storage contract that every backend
// variant (in-memory, relational, cache, document) implements. All
// higher-level semantics — uniqueness, ordering, assignment, retain —
// live in internal/queue, not here.
package backend

import (
	"context"
	"errors"

	"github.com/queuehub/queuehub/internal/model"
)

// ErrOrdinalityConflict is returned by Append when a core-assigned backend
// detects that the supplied ID was claimed by a concurrent writer between
// the core's MaxIDOf read and this Append. The core retries allocation on
// this error up to a bounded number of attempts.
var ErrOrdinalityConflict = errors.New("ordinality conflict: id already taken")

// OrdinalityPolicy reports whether a backend assigns a message's ordering
// key itself (Intrinsic, e.g. a database auto-increment column) or
// expects the core to compute and supply it (CoreAssigned).
type OrdinalityPolicy int

const (
	Intrinsic OrdinalityPolicy = iota
	CoreAssigned
)

// Backend is the storage contract for message records.
type Backend interface {
	// OrdinalityPolicy reports how ordering keys are assigned.
	OrdinalityPolicy() OrdinalityPolicy

	// Append stores a new record. For Intrinsic backends, the returned
	// record has ID populated by the backend. For CoreAssigned backends
	// the caller must already have set record.ID.
	Append(ctx context.Context, record model.Message) (model.Message, error)

	// RemoveByUUID deletes the record with the given uuid, returning the
	// number of records removed (0 or 1).
	RemoveByUUID(ctx context.Context, uuid string) (int, error)

	// UpdateByUUID replaces a record's mutable metadata in place,
	// preserving ID and SubQueue. Returns false if no such uuid exists.
	UpdateByUUID(ctx context.Context, uuid string, record model.Message) (bool, error)

	// FindByUUID returns the record with the given uuid, or ok=false.
	FindByUUID(ctx context.Context, uuid string) (model.Message, bool, error)

	// FindSubQueueOf returns the sub-queue owning uuid, or ok=false.
	FindSubQueueOf(ctx context.Context, uuid string) (string, bool, error)

	// IterateSubQueue returns records matching filter, ascending by ID.
	IterateSubQueue(ctx context.Context, subQueue string, filter model.Filter) ([]model.Message, error)

	// MaxIDOf returns the current maximum ID in subQueue, or ok=false if
	// the sub-queue is empty. Only meaningful for CoreAssigned backends.
	MaxIDOf(ctx context.Context, subQueue string) (int64, bool, error)

	// SizeOf returns the number of records currently in subQueue.
	SizeOf(ctx context.Context, subQueue string) (int, error)

	// DistinctSubQueues returns the set of sub-queue identifiers that
	// currently hold at least one record.
	DistinctSubQueues(ctx context.Context) (map[string]struct{}, error)

	// DeleteSubQueue removes every record in subQueue, returning the
	// count removed.
	DeleteSubQueue(ctx context.Context, subQueue string) (int, error)

	// DeleteAll removes every record in every sub-queue, returning the
	// total count removed.
	DeleteAll(ctx context.Context) (int, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// SetStore is the storage contract used by the restriction registry: a
// simple named string set, pluggable across the same four backend
// variants as Backend.
type SetStore interface {
	Add(ctx context.Context, value string) error
	Remove(ctx context.Context, value string) (bool, error)
	Contains(ctx context.Context, value string) (bool, error)
	List(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) (int, error)
	// ReservedValues returns identifiers this store reserves for its own
	// bookkeeping and that must never be accepted as set members.
	ReservedValues() []string
	Ping(ctx context.Context) error
}
