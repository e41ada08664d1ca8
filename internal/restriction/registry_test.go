package restriction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queuehub/queuehub/internal/backend/memory"
	"github.com/queuehub/queuehub/internal/restriction"
)

func TestAddListRemoveRestriction(t *testing.T) {
	ctx := context.Background()
	r := restriction.New(memory.NewSetStore())

	restricted, err := r.IsRestricted(ctx, "sq")
	require.NoError(t, err)
	require.False(t, restricted)

	require.NoError(t, r.AddRestriction(ctx, "sq"))

	restricted, err = r.IsRestricted(ctx, "sq")
	require.NoError(t, err)
	require.True(t, restricted)

	list, err := r.ListRestricted(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"sq"}, list)

	removed, err := r.RemoveRestriction(ctx, "sq")
	require.NoError(t, err)
	require.True(t, removed)
}

func TestMemoryStoreReservesNoNames(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSetStore()
	r := restriction.New(store)

	err := r.AddRestriction(ctx, "order")
	require.NoError(t, err) // memory set store reserves nothing

	require.Empty(t, r.ReservedSubQueues())
	require.False(t, r.IsReserved("order"))
}

func TestClearRestrictionsReturnsCount(t *testing.T) {
	ctx := context.Background()
	r := restriction.New(memory.NewSetStore())

	require.NoError(t, r.AddRestriction(ctx, "a"))
	require.NoError(t, r.AddRestriction(ctx, "b"))

	n, err := r.ClearRestrictions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
