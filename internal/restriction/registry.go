// Package restriction implements the Restriction Registry: the set of
// sub-queue identifiers that require a matching bearer token, backed by
// the same four pluggable storage variants as the message backend.
package restriction

import (
	"context"
	"fmt"

	"github.com/queuehub/queuehub/internal/backend"
)

// Registry gates access-control decisions on sub-queue restriction state.
type Registry struct {
	store backend.SetStore
}

// New wraps a backend.SetStore as a Registry.
func New(store backend.SetStore) *Registry {
	return &Registry{store: store}
}

// IsRestricted reports whether subQueue currently requires a token.
func (r *Registry) IsRestricted(ctx context.Context, subQueue string) (bool, error) {
	ok, err := r.store.Contains(ctx, subQueue)
	if err != nil {
		return false, fmt.Errorf("restriction registry: is restricted: %w", err)
	}
	return ok, nil
}

// AddRestriction marks subQueue as restricted.
func (r *Registry) AddRestriction(ctx context.Context, subQueue string) error {
	if r.IsReserved(subQueue) {
		return fmt.Errorf("restriction registry: %q is reserved", subQueue)
	}
	if err := r.store.Add(ctx, subQueue); err != nil {
		return fmt.Errorf("restriction registry: add: %w", err)
	}
	return nil
}

// RemoveRestriction unmarks subQueue, reporting whether it had been
// restricted.
func (r *Registry) RemoveRestriction(ctx context.Context, subQueue string) (bool, error) {
	ok, err := r.store.Remove(ctx, subQueue)
	if err != nil {
		return false, fmt.Errorf("restriction registry: remove: %w", err)
	}
	return ok, nil
}

// ListRestricted returns every currently restricted sub-queue.
func (r *Registry) ListRestricted(ctx context.Context) ([]string, error) {
	vals, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("restriction registry: list: %w", err)
	}
	return vals, nil
}

// ClearRestrictions removes every restriction, returning the count removed.
func (r *Registry) ClearRestrictions(ctx context.Context) (int, error) {
	n, err := r.store.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("restriction registry: clear: %w", err)
	}
	return n, nil
}

// ReservedSubQueues returns the identifiers the registry's own storage
// variant reserves for its bookkeeping and that must never be used as a
// real sub-queue name.
func (r *Registry) ReservedSubQueues() map[string]struct{} {
	out := make(map[string]struct{})
	for _, v := range r.store.ReservedValues() {
		out[v] = struct{}{}
	}
	return out
}

// IsReserved reports whether subQueue is one of ReservedSubQueues. It
// satisfies queue.ReservedChecker.
func (r *Registry) IsReserved(subQueue string) bool {
	_, ok := r.ReservedSubQueues()[subQueue]
	return ok
}

func (r *Registry) HealthCheck(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("restriction registry: ping: %w", err)
	}
	return nil
}
