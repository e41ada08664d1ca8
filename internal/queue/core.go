// Package queue implements the backend-agnostic MultiQueue core: the
// orchestrator enforcing uuid uniqueness, ordering-key assignment,
// assignment/reservation rules, and the shared algorithms (retainAll,
// ownersMap, poll = peek + remove) on top of any backend.Backend.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/queuehub/queuehub/internal/backend"
	"github.com/queuehub/queuehub/internal/errs"
	"github.com/queuehub/queuehub/internal/model"
)

// maxOrdinalityRetries bounds the core-assigned id allocation retry loop
// before a conflict is surfaced to the caller as errs.Backend.
const maxOrdinalityRetries = 5

// Metrics is the subset of instrumentation the core calls into. A nil
// Metrics is valid; every call becomes a no-op.
type Metrics interface {
	IncMessagesAdded(subQueue string)
	IncMessagesPolled(subQueue string)
	SetQueueDepth(subQueue string, n int)
	IncAssignmentConflicts(subQueue string)
	ObserveBackendOp(op, backendKind string, dur time.Duration)
}

// ReservedChecker reports whether a sub-queue identifier is reserved by a
// storage backend for its own bookkeeping and must be rejected as a
// target for message operations.
type ReservedChecker interface {
	IsReserved(subQueue string) bool
}

// Core is the MultiQueue orchestrator.
type Core struct {
	be       backend.Backend
	kind     string
	locks    *lockTable
	metrics  Metrics
	reserved ReservedChecker
}

// Option configures a Core at construction.
type Option func(*Core)

// WithMetrics attaches a Metrics recorder.
func WithMetrics(m Metrics) Option { return func(c *Core) { c.metrics = m } }

// WithReservedChecker attaches a ReservedChecker that Add consults before
// storing a record in a sub-queue.
func WithReservedChecker(r ReservedChecker) Option { return func(c *Core) { c.reserved = r } }

// New returns a Core over be. kind names the backend for error/metric
// labeling (e.g. "memory", "relational", "cache", "document").
func New(be backend.Backend, kind string, opts ...Option) *Core {
	c := &Core{be: be, kind: kind, locks: newLockTable()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Core) wrapBackend(err error, cause errs.BackendCause) error {
	if err == nil {
		return nil
	}
	return &errs.Backend{Kind: c.kind, Cause: cause, Err: err}
}

func (c *Core) observe(op string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveBackendOp(op, c.kind, time.Since(start))
	}
}

// Add assigns a uuid if absent, rejects duplicates service-wide, allocates
// an ordering key if the backend is core-assigned, and stores the record.
func (c *Core) Add(ctx context.Context, msg model.Message) (model.Message, error) {
	defer c.observe("add", time.Now())

	if msg.SubQueue == "" {
		return model.Message{}, &errs.Malformed{Reason: "subQueue must not be empty"}
	}
	if c.reserved != nil && c.reserved.IsReserved(msg.SubQueue) {
		return model.Message{}, &errs.Reserved{SubQueue: msg.SubQueue}
	}
	if msg.UUID == "" {
		msg.UUID = uuid.New().String()
	}

	if sq, found, err := c.be.FindSubQueueOf(ctx, msg.UUID); err != nil {
		return model.Message{}, c.wrapBackend(err, errs.CauseIO)
	} else if found {
		return model.Message{}, &errs.DuplicateMessage{UUID: msg.UUID, ExistingSubQueue: sq}
	}

	var stored model.Message
	var err error
	switch c.be.OrdinalityPolicy() {
	case backend.Intrinsic:
		stored, err = c.be.Append(ctx, msg)
		if err != nil {
			return model.Message{}, c.wrapBackend(err, errs.CauseIO)
		}
	default:
		stored, err = c.appendCoreAssigned(ctx, msg)
		if err != nil {
			return model.Message{}, err
		}
	}

	if c.metrics != nil {
		c.metrics.IncMessagesAdded(msg.SubQueue)
		if n, err := c.be.SizeOf(ctx, msg.SubQueue); err == nil {
			c.metrics.SetQueueDepth(msg.SubQueue, n)
		}
	}
	return stored, nil
}

// appendCoreAssigned serializes max(id)+1 allocation and Append against
// concurrent writers to the same sub-queue with a per-sub-queue lock,
// retrying a bounded number of times if the backend reports a conflict
// from a writer outside this process.
func (c *Core) appendCoreAssigned(ctx context.Context, msg model.Message) (model.Message, error) {
	lock := c.locks.get(msg.SubQueue)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxOrdinalityRetries; attempt++ {
		maxID, ok, err := c.be.MaxIDOf(ctx, msg.SubQueue)
		if err != nil {
			return model.Message{}, c.wrapBackend(err, errs.CauseIO)
		}
		next := int64(1)
		if ok {
			next = maxID + 1
		}
		msg.ID = next

		stored, err := c.be.Append(ctx, msg)
		if err == nil {
			return stored, nil
		}
		if errors.Is(err, backend.ErrOrdinalityConflict) {
			lastErr = err
			continue
		}
		return model.Message{}, c.wrapBackend(err, errs.CauseIO)
	}
	return model.Message{}, c.wrapBackend(lastErr, errs.CauseConflict)
}

// Remove deletes the record identified by uuid, reporting whether one was
// removed.
func (c *Core) Remove(ctx context.Context, uuid string) (bool, error) {
	defer c.observe("remove", time.Now())

	sq, found, err := c.be.FindSubQueueOf(ctx, uuid)
	if err != nil {
		return false, c.wrapBackend(err, errs.CauseIO)
	}
	if !found {
		return false, nil
	}

	n, err := c.be.RemoveByUUID(ctx, uuid)
	if err != nil {
		return false, c.wrapBackend(err, errs.CauseIO)
	}
	if n > 0 && c.metrics != nil {
		if size, err := c.be.SizeOf(ctx, sq); err == nil {
			c.metrics.SetQueueDepth(sq, size)
		}
	}
	return n > 0, nil
}

// Poll returns the head of subQueue (lowest id) and removes it. The loser
// of a race against a concurrent Poll on the same sub-queue retries peek+
// remove once before reporting empty.
func (c *Core) Poll(ctx context.Context, subQueue string) (model.Message, bool, error) {
	defer c.observe("poll", time.Now())

	for attempt := 0; attempt < 2; attempt++ {
		head, ok, err := c.peekLocked(ctx, subQueue)
		if err != nil {
			return model.Message{}, false, err
		}
		if !ok {
			return model.Message{}, false, nil
		}

		n, err := c.be.RemoveByUUID(ctx, head.UUID)
		if err != nil {
			return model.Message{}, false, c.wrapBackend(err, errs.CauseIO)
		}
		if n > 0 {
			if c.metrics != nil {
				c.metrics.IncMessagesPolled(subQueue)
				if size, err := c.be.SizeOf(ctx, subQueue); err == nil {
					c.metrics.SetQueueDepth(subQueue, size)
				}
			}
			return head, true, nil
		}
		// Lost the race to a concurrent Poll; retry once against the new head.
	}
	return model.Message{}, false, nil
}

// Peek returns the head of subQueue without removing it.
func (c *Core) Peek(ctx context.Context, subQueue string) (model.Message, bool, error) {
	defer c.observe("peek", time.Now())
	return c.peekLocked(ctx, subQueue)
}

func (c *Core) peekLocked(ctx context.Context, subQueue string) (model.Message, bool, error) {
	records, err := c.be.IterateSubQueue(ctx, subQueue, model.Filter{Mode: model.FilterAll})
	if err != nil {
		return model.Message{}, false, c.wrapBackend(err, errs.CauseIO)
	}
	if len(records) == 0 {
		return model.Message{}, false, nil
	}
	return records[0], true, nil
}

// GetMessageByUUID returns the record with the given uuid, if any.
func (c *Core) GetMessageByUUID(ctx context.Context, uuid string) (model.Message, bool, error) {
	defer c.observe("get_by_uuid", time.Now())
	m, ok, err := c.be.FindByUUID(ctx, uuid)
	if err != nil {
		return model.Message{}, false, c.wrapBackend(err, errs.CauseIO)
	}
	return m, ok, nil
}

// ContainsUUID returns the owning sub-queue of uuid, if any.
func (c *Core) ContainsUUID(ctx context.Context, uuid string) (string, bool, error) {
	defer c.observe("contains_uuid", time.Now())
	sq, ok, err := c.be.FindSubQueueOf(ctx, uuid)
	if err != nil {
		return "", false, c.wrapBackend(err, errs.CauseIO)
	}
	return sq, ok, nil
}

// GetForSubQueue returns subQueue's records matching filter, ascending by id.
func (c *Core) GetForSubQueue(ctx context.Context, subQueue string, filter model.Filter) ([]model.Message, error) {
	defer c.observe("get_for_sub_queue", time.Now())
	records, err := c.be.IterateSubQueue(ctx, subQueue, filter)
	if err != nil {
		return nil, c.wrapBackend(err, errs.CauseIO)
	}
	return records, nil
}

// Keys returns the set of sub-queue identifiers. When includeEmpty is
// false, only sub-queues with at least one record are included.
func (c *Core) Keys(ctx context.Context, includeEmpty bool) (map[string]struct{}, error) {
	defer c.observe("keys", time.Now())
	// includeEmpty has no observable effect here: the backend contract
	// only ever reports sub-queues that currently hold records (empty
	// sub-queues are not retained as standalone entities by any backend
	// variant).
	_ = includeEmpty
	sqs, err := c.be.DistinctSubQueues(ctx)
	if err != nil {
		return nil, c.wrapBackend(err, errs.CauseIO)
	}
	return sqs, nil
}

// SizeOf returns the number of records in subQueue.
func (c *Core) SizeOf(ctx context.Context, subQueue string) (int, error) {
	defer c.observe("size_of", time.Now())
	n, err := c.be.SizeOf(ctx, subQueue)
	if err != nil {
		return 0, c.wrapBackend(err, errs.CauseIO)
	}
	return n, nil
}

// Size returns the total number of records across every sub-queue.
func (c *Core) Size(ctx context.Context) (int, error) {
	defer c.observe("size", time.Now())
	sqs, err := c.be.DistinctSubQueues(ctx)
	if err != nil {
		return 0, c.wrapBackend(err, errs.CauseIO)
	}
	total := 0
	for sq := range sqs {
		n, err := c.be.SizeOf(ctx, sq)
		if err != nil {
			return 0, c.wrapBackend(err, errs.CauseIO)
		}
		total += n
	}
	return total, nil
}

// IsEmpty reports whether the service holds zero records anywhere.
func (c *Core) IsEmpty(ctx context.Context) (bool, error) {
	n, err := c.Size(ctx)
	return n == 0, err
}

// IsEmptyFor reports whether subQueue holds zero records.
func (c *Core) IsEmptyFor(ctx context.Context, subQueue string) (bool, error) {
	n, err := c.SizeOf(ctx, subQueue)
	return n == 0, err
}

// ClearFor removes every record in subQueue, returning the count removed.
func (c *Core) ClearFor(ctx context.Context, subQueue string) (int, error) {
	defer c.observe("clear_for", time.Now())
	n, err := c.be.DeleteSubQueue(ctx, subQueue)
	if err != nil {
		return 0, c.wrapBackend(err, errs.CauseIO)
	}
	if c.metrics != nil {
		c.metrics.SetQueueDepth(subQueue, 0)
	}
	return n, nil
}

// ClearAll removes every record in every sub-queue, returning the total
// count removed.
func (c *Core) ClearAll(ctx context.Context) (int, error) {
	defer c.observe("clear_all", time.Now())
	n, err := c.be.DeleteAll(ctx)
	if err != nil {
		return 0, c.wrapBackend(err, errs.CauseIO)
	}
	return n, nil
}

// Assign sets assignedTo on the message identified by uuid. It is
// idempotent: assigning to the current owner succeeds as a no-op.
func (c *Core) Assign(ctx context.Context, uuid, owner string) (model.Message, error) {
	defer c.observe("assign", time.Now())

	m, ok, err := c.be.FindByUUID(ctx, uuid)
	if err != nil {
		return model.Message{}, c.wrapBackend(err, errs.CauseIO)
	}
	if !ok {
		return model.Message{}, &errs.NotFound{UUID: uuid}
	}

	if m.IsAssigned() {
		if m.AssignedTo == owner {
			return m, nil // idempotent no-op
		}
		if c.metrics != nil {
			c.metrics.IncAssignmentConflicts(m.SubQueue)
		}
		return model.Message{}, &errs.AlreadyAssigned{UUID: uuid, OtherOwner: m.AssignedTo}
	}

	now := time.Now().UTC()
	updated := m
	updated.AssignedTo = owner
	updated.AssignmentTimestamp = &now

	ok2, err := c.be.UpdateByUUID(ctx, uuid, updated)
	if err != nil {
		return model.Message{}, c.wrapBackend(err, errs.CauseIO)
	}
	if !ok2 {
		return model.Message{}, &errs.NotFound{UUID: uuid}
	}
	return updated, nil
}

// Release clears assignedTo, if the caller identifies as the current owner.
func (c *Core) Release(ctx context.Context, uuid, owner string) (model.Message, error) {
	defer c.observe("release", time.Now())

	m, ok, err := c.be.FindByUUID(ctx, uuid)
	if err != nil {
		return model.Message{}, c.wrapBackend(err, errs.CauseIO)
	}
	if !ok {
		return model.Message{}, &errs.NotFound{UUID: uuid}
	}
	if m.AssignedTo != owner {
		return model.Message{}, &errs.AssignmentMismatch{UUID: uuid, CurrentOwner: m.AssignedTo, Requester: owner}
	}

	updated := m
	updated.AssignedTo = ""
	updated.AssignmentTimestamp = nil

	ok2, err := c.be.UpdateByUUID(ctx, uuid, updated)
	if err != nil {
		return model.Message{}, c.wrapBackend(err, errs.CauseIO)
	}
	if !ok2 {
		return model.Message{}, &errs.NotFound{UUID: uuid}
	}
	return updated, nil
}

// Persist replaces a record's mutable metadata under the same uuid,
// preserving id and subQueue.
func (c *Core) Persist(ctx context.Context, msg model.Message) (model.Message, error) {
	defer c.observe("persist", time.Now())

	existing, ok, err := c.be.FindByUUID(ctx, msg.UUID)
	if err != nil {
		return model.Message{}, c.wrapBackend(err, errs.CauseIO)
	}
	if !ok {
		return model.Message{}, &errs.NotFound{UUID: msg.UUID}
	}

	updated := msg
	updated.ID = existing.ID
	updated.SubQueue = existing.SubQueue

	ok2, err := c.be.UpdateByUUID(ctx, msg.UUID, updated)
	if err != nil {
		return model.Message{}, c.wrapBackend(err, errs.CauseIO)
	}
	if !ok2 {
		return model.Message{}, &errs.UpdateFailed{UUID: msg.UUID, Reason: "backend reported no match"}
	}
	return updated, nil
}

// RetainAll removes every stored record whose uuid is not in keep,
// reporting whether any removal occurred.
func (c *Core) RetainAll(ctx context.Context, keep map[string]struct{}) (bool, error) {
	defer c.observe("retain_all", time.Now())

	sqs, err := c.be.DistinctSubQueues(ctx)
	if err != nil {
		return false, c.wrapBackend(err, errs.CauseIO)
	}

	removedAny := false
	for sq := range sqs {
		records, err := c.be.IterateSubQueue(ctx, sq, model.Filter{Mode: model.FilterAll})
		if err != nil {
			return removedAny, c.wrapBackend(err, errs.CauseIO)
		}
		for _, r := range records {
			if _, keepIt := keep[r.UUID]; keepIt {
				continue
			}
			n, err := c.be.RemoveByUUID(ctx, r.UUID)
			if err != nil {
				return removedAny, c.wrapBackend(err, errs.CauseIO)
			}
			if n > 0 {
				removedAny = true
			}
		}
	}
	return removedAny, nil
}

// OwnersMap returns, for the given sub-queue (or every sub-queue if
// subQueue is empty), a mapping of owner -> set of sub-queue identifiers
// they currently hold at least one assigned message in.
func (c *Core) OwnersMap(ctx context.Context, subQueue string) (map[string]map[string]struct{}, error) {
	defer c.observe("owners_map", time.Now())

	var subQueues map[string]struct{}
	if subQueue != "" {
		subQueues = map[string]struct{}{subQueue: {}}
	} else {
		sqs, err := c.be.DistinctSubQueues(ctx)
		if err != nil {
			return nil, c.wrapBackend(err, errs.CauseIO)
		}
		subQueues = sqs
	}

	out := make(map[string]map[string]struct{})
	for sq := range subQueues {
		records, err := c.be.IterateSubQueue(ctx, sq, model.Filter{Mode: model.FilterAssigned})
		if err != nil {
			return nil, c.wrapBackend(err, errs.CauseIO)
		}
		for _, r := range records {
			if out[r.AssignedTo] == nil {
				out[r.AssignedTo] = make(map[string]struct{})
			}
			out[r.AssignedTo][sq] = struct{}{}
		}
	}
	return out, nil
}

// HealthCheck verifies the backend is reachable.
func (c *Core) HealthCheck(ctx context.Context) error {
	defer c.observe("health_check", time.Now())
	if err := c.be.Ping(ctx); err != nil {
		return c.wrapBackend(err, errs.CauseUnavailable)
	}
	return nil
}
