// Package backendtest holds a reusable conformance suite exercised
// against every backend.Backend and backend.SetStore variant: a single
// exported Run*Suite(t, factory) function per contract, using testify
// assertions so any backend implementation can be dropped in and
// checked against the same invariants.
package backendtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queuehub/queuehub/internal/backend"
	"github.com/queuehub/queuehub/internal/model"
)

// RunBackendSuite runs every backend-level invariant against a fresh
// backend.Backend produced by newBackend for each subtest.
func RunBackendSuite(t *testing.T, newBackend func() backend.Backend) {
	t.Run("AppendAndFindRoundTrip", func(t *testing.T) { testAppendAndFindRoundTrip(t, newBackend()) })
	t.Run("RemoveByUUID", func(t *testing.T) { testRemoveByUUID(t, newBackend()) })
	t.Run("UpdateByUUIDPreservesIdentity", func(t *testing.T) { testUpdateByUUIDPreservesIdentity(t, newBackend()) })
	t.Run("IterateSubQueueOrdering", func(t *testing.T) { testIterateSubQueueOrdering(t, newBackend()) })
	t.Run("SizeOfAndDistinctSubQueues", func(t *testing.T) { testSizeOfAndDistinctSubQueues(t, newBackend()) })
	t.Run("DeleteSubQueueAndDeleteAll", func(t *testing.T) { testDeleteSubQueueAndDeleteAll(t, newBackend()) })
	t.Run("Ping", func(t *testing.T) { testBackendPing(t, newBackend()) })
}

func testAppendAndFindRoundTrip(t *testing.T, be backend.Backend) {
	ctx := context.Background()
	msg := model.Message{UUID: "u1", SubQueue: "sq", Payload: model.Payload{ContentType: "text/plain", Data: []byte("hello")}}
	if be.OrdinalityPolicy() == backend.CoreAssigned {
		msg.ID = 1
	}

	stored, err := be.Append(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, "u1", stored.UUID)
	require.NotZero(t, stored.ID)

	found, ok, err := be.FindByUUID(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sq", found.SubQueue)
	require.Equal(t, []byte("hello"), found.Payload.Data)

	sq, ok, err := be.FindSubQueueOf(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sq", sq)

	_, ok, err = be.FindByUUID(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func testRemoveByUUID(t *testing.T, be backend.Backend) {
	ctx := context.Background()
	msg := model.Message{UUID: "u1", SubQueue: "sq", ID: 1}
	_, err := be.Append(ctx, msg)
	require.NoError(t, err)

	n, err := be.RemoveByUUID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = be.RemoveByUUID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func testUpdateByUUIDPreservesIdentity(t *testing.T, be backend.Backend) {
	ctx := context.Background()
	msg := model.Message{UUID: "u1", SubQueue: "sq", ID: 1, Payload: model.Payload{Data: []byte("a")}}
	stored, err := be.Append(ctx, msg)
	require.NoError(t, err)

	updated := stored
	updated.AssignedTo = "owner-1"
	updated.Payload = model.Payload{Data: []byte("b")}

	ok, err := be.UpdateByUUID(ctx, "u1", updated)
	require.NoError(t, err)
	require.True(t, ok)

	found, ok, err := be.FindByUUID(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "owner-1", found.AssignedTo)
	require.Equal(t, stored.ID, found.ID)
	require.Equal(t, stored.SubQueue, found.SubQueue)

	ok, err = be.UpdateByUUID(ctx, "does-not-exist", updated)
	require.NoError(t, err)
	require.False(t, ok)
}

func testIterateSubQueueOrdering(t *testing.T, be backend.Backend) {
	ctx := context.Background()
	core := be.OrdinalityPolicy() == backend.CoreAssigned

	for i, uid := range []string{"u1", "u2", "u3"} {
		msg := model.Message{UUID: uid, SubQueue: "sq"}
		if core {
			msg.ID = int64(i + 1)
		}
		_, err := be.Append(ctx, msg)
		require.NoError(t, err)
	}

	records, err := be.IterateSubQueue(ctx, "sq", model.Filter{Mode: model.FilterAll})
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		require.LessOrEqual(t, records[i-1].ID, records[i].ID)
	}
}

func testSizeOfAndDistinctSubQueues(t *testing.T, be backend.Backend) {
	ctx := context.Background()
	core := be.OrdinalityPolicy() == backend.CoreAssigned

	for i, sq := range []string{"sq-a", "sq-a", "sq-b"} {
		msg := model.Message{UUID: fmt.Sprintf("u-%s-%d", sq, i), SubQueue: sq}
		if core {
			msg.ID = int64(i + 1)
		}
		_, err := be.Append(ctx, msg)
		require.NoError(t, err)
	}

	n, err := be.SizeOf(ctx, "sq-a")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	sqs, err := be.DistinctSubQueues(ctx)
	require.NoError(t, err)
	require.Contains(t, sqs, "sq-a")
	require.Contains(t, sqs, "sq-b")
}

func testDeleteSubQueueAndDeleteAll(t *testing.T, be backend.Backend) {
	ctx := context.Background()
	core := be.OrdinalityPolicy() == backend.CoreAssigned

	for i, sq := range []string{"sq-a", "sq-a", "sq-b"} {
		msg := model.Message{UUID: fmt.Sprintf("u-%s-%d", sq, i), SubQueue: sq}
		if core {
			msg.ID = int64(i + 1)
		}
		_, err := be.Append(ctx, msg)
		require.NoError(t, err)
	}

	n, err := be.DeleteSubQueue(ctx, "sq-a")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = be.DeleteAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func testBackendPing(t *testing.T, be backend.Backend) {
	require.NoError(t, be.Ping(context.Background()))
}

// RunSetStoreSuite runs every backend.SetStore invariant against a fresh
// store produced by newStore for each subtest.
func RunSetStoreSuite(t *testing.T, newStore func() backend.SetStore) {
	t.Run("AddContainsRemove", func(t *testing.T) {
		ctx := context.Background()
		s := newStore()

		ok, err := s.Contains(ctx, "a")
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, s.Add(ctx, "a"))
		ok, err = s.Contains(ctx, "a")
		require.NoError(t, err)
		require.True(t, ok)

		removed, err := s.Remove(ctx, "a")
		require.NoError(t, err)
		require.True(t, removed)

		removed, err = s.Remove(ctx, "a")
		require.NoError(t, err)
		require.False(t, removed)
	})

	t.Run("ListAndClear", func(t *testing.T) {
		ctx := context.Background()
		s := newStore()

		require.NoError(t, s.Add(ctx, "a"))
		require.NoError(t, s.Add(ctx, "b"))

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"a", "b"}, list)

		n, err := s.Clear(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		list, err = s.List(ctx)
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, newStore().Ping(context.Background()))
	})
}
