package router

import (
	"context"
	"fmt"

	"github.com/devaloi/chatrelay/internal/codec"
	"github.com/devaloi/chatrelay/internal/domain"
)

// persist writes a full snapshot of history and groups. Writes are
// serialized, and each one captures state after taking the lock, so the last
// write always contains every mutation that finished before it started.
func (r *Router) persist(ctx context.Context) error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	snap := codec.Build(r.history.Snapshot(), r.registry.Groups())
	if err := r.store.Save(ctx, snap); err != nil {
		r.log.Error("snapshot write failed", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Restore loads the persisted snapshot into the empty in-memory state.
// Call once before serving traffic.
func (r *Router) Restore(ctx context.Context) error {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load snapshot: %v", domain.ErrPersistence, err)
	}
	logs, err := snap.Messages()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	r.history.Restore(logs)
	r.registry.RestoreGroups(snap.Groups)
	r.log.Info("state restored", "conversations", len(logs), "groups", len(snap.Groups))
	return nil
}

// Flush writes one snapshot on demand, e.g. during shutdown.
func (r *Router) Flush(ctx context.Context) error {
	return r.persist(ctx)
}
