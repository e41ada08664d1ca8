package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queuehub/queuehub/internal/backend/memory"
	"github.com/queuehub/queuehub/internal/errs"
	"github.com/queuehub/queuehub/internal/model"
	"github.com/queuehub/queuehub/internal/queue"
)

func newCore() *queue.Core {
	return queue.New(memory.New(), "memory")
}

func TestAddAssignsUUIDAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	stored, err := c.Add(ctx, model.Message{SubQueue: "sq"})
	require.NoError(t, err)
	require.NotEmpty(t, stored.UUID)

	_, err = c.Add(ctx, model.Message{UUID: stored.UUID, SubQueue: "sq"})
	var dup *errs.DuplicateMessage
	require.ErrorAs(t, err, &dup)
}

func TestAddRejectsEmptySubQueueAsMalformed(t *testing.T) {
	c := newCore()

	_, err := c.Add(context.Background(), model.Message{})
	var malformed *errs.Malformed
	require.ErrorAs(t, err, &malformed)
}

func TestAddOrdersAssignedIDsMonotonically(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	var last int64
	for i := 0; i < 5; i++ {
		m, err := c.Add(ctx, model.Message{SubQueue: "sq"})
		require.NoError(t, err)
		require.Greater(t, m.ID, last)
		last = m.ID
	}
}

func TestAddOrdinalityIsSerializedUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Add(ctx, model.Message{SubQueue: "sq"})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	records, err := c.GetForSubQueue(ctx, "sq", model.Filter{Mode: model.FilterAll})
	require.NoError(t, err)
	require.Len(t, records, n)

	seen := make(map[int64]bool)
	for _, r := range records {
		require.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
}

func TestPollRemovesHeadInOrder(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	first, err := c.Add(ctx, model.Message{SubQueue: "sq"})
	require.NoError(t, err)
	second, err := c.Add(ctx, model.Message{SubQueue: "sq"})
	require.NoError(t, err)

	polled, ok, err := c.Poll(ctx, "sq")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.UUID, polled.UUID)

	_, stillThere, err := c.GetMessageByUUID(ctx, first.UUID)
	require.NoError(t, err)
	require.False(t, stillThere)

	polled, ok, err = c.Poll(ctx, "sq")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second.UUID, polled.UUID)

	_, ok, err = c.Poll(ctx, "sq")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAssignIsIdempotentForSameOwner(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	msg, err := c.Add(ctx, model.Message{SubQueue: "sq"})
	require.NoError(t, err)

	first, err := c.Assign(ctx, msg.UUID, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", first.AssignedTo)

	second, err := c.Assign(ctx, msg.UUID, "alice")
	require.NoError(t, err)
	require.Equal(t, first.AssignmentTimestamp, second.AssignmentTimestamp)
}

func TestAssignConflictsWithAnotherOwner(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	msg, err := c.Add(ctx, model.Message{SubQueue: "sq"})
	require.NoError(t, err)

	_, err = c.Assign(ctx, msg.UUID, "alice")
	require.NoError(t, err)

	_, err = c.Assign(ctx, msg.UUID, "bob")
	var already *errs.AlreadyAssigned
	require.ErrorAs(t, err, &already)
	require.Equal(t, "alice", already.OtherOwner)
}

func TestReleaseRequiresCurrentOwner(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	msg, err := c.Add(ctx, model.Message{SubQueue: "sq"})
	require.NoError(t, err)
	_, err = c.Assign(ctx, msg.UUID, "alice")
	require.NoError(t, err)

	_, err = c.Release(ctx, msg.UUID, "bob")
	var mismatch *errs.AssignmentMismatch
	require.ErrorAs(t, err, &mismatch)

	released, err := c.Release(ctx, msg.UUID, "alice")
	require.NoError(t, err)
	require.False(t, released.IsAssigned())
}

func TestRetainAllRemovesEverythingNotKept(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	keep, err := c.Add(ctx, model.Message{SubQueue: "sq"})
	require.NoError(t, err)
	_, err = c.Add(ctx, model.Message{SubQueue: "sq"})
	require.NoError(t, err)

	removedAny, err := c.RetainAll(ctx, map[string]struct{}{keep.UUID: {}})
	require.NoError(t, err)
	require.True(t, removedAny)

	n, err := c.SizeOf(ctx, "sq")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestKeysEnumeratesNonEmptySubQueues(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	_, err := c.Add(ctx, model.Message{SubQueue: "sq-a"})
	require.NoError(t, err)
	_, err = c.Add(ctx, model.Message{SubQueue: "sq-b"})
	require.NoError(t, err)

	keys, err := c.Keys(ctx, false)
	require.NoError(t, err)
	require.Contains(t, keys, "sq-a")
	require.Contains(t, keys, "sq-b")
}

func TestOwnersMapGroupsByOwner(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	m1, err := c.Add(ctx, model.Message{SubQueue: "sq-a"})
	require.NoError(t, err)
	m2, err := c.Add(ctx, model.Message{SubQueue: "sq-b"})
	require.NoError(t, err)

	_, err = c.Assign(ctx, m1.UUID, "alice")
	require.NoError(t, err)
	_, err = c.Assign(ctx, m2.UUID, "alice")
	require.NoError(t, err)

	owners, err := c.OwnersMap(ctx, "")
	require.NoError(t, err)
	require.Contains(t, owners["alice"], "sq-a")
	require.Contains(t, owners["alice"], "sq-b")
}

func TestAddRejectsReservedSubQueue(t *testing.T) {
	ctx := context.Background()
	be := memory.New()
	c := queue.New(be, "memory", queue.WithReservedChecker(reservedAlways{}))

	_, err := c.Add(ctx, model.Message{SubQueue: "reserved"})
	var reserved *errs.Reserved
	require.ErrorAs(t, err, &reserved)
}

type reservedAlways struct{}

func (reservedAlways) IsReserved(string) bool { return true }

func TestPersistUnknownUUIDFails(t *testing.T) {
	ctx := context.Background()
	c := newCore()

	_, err := c.Persist(ctx, model.Message{UUID: "does-not-exist"})
	var notFound *errs.NotFound
	require.ErrorAs(t, err, &notFound)
	require.False(t, errors.As(err, new(*errs.UpdateFailed)))
}
