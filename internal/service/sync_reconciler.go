package service

import (
	"context"

	"paperlib-sync-server/internal/domain"
)

type livePaperLookup interface {
	LiveExists(ctx context.Context, ownerID string, id int64) (bool, error)
}

// Reconciler maps the paper ids a client uses inside one batch to server
// ids. It lives for exactly one batch.
type Reconciler struct {
	ownerID  string
	lookup   livePaperLookup
	batch    map[domain.IDRef]int64
	verified map[int64]bool
}

func NewReconciler(ownerID string, lookup livePaperLookup) *Reconciler {
	return &Reconciler{
		ownerID:  ownerID,
		lookup:   lookup,
		batch:    make(map[domain.IDRef]int64),
		verified: make(map[int64]bool),
	}
}

// Map records that ref names the paper with server id id for the rest of
// the batch. A ref equal to the id itself is not stored, so a client-local
// id that happens to match a server id keeps its batch meaning.
func (r *Reconciler) Map(ref domain.IDRef, id int64) {
	if !ref.IsZero() && ref != domain.RefFromID(id) {
		r.batch[ref] = id
	}
	r.verified[id] = true
}

// Forget marks a paper that stopped being live during the batch. Its local
// refs stay mapped so they cannot fall through to an unrelated server id.
func (r *Reconciler) Forget(id int64) {
	r.verified[id] = false
}

// Mapped resolves ref against the batch mapping only.
func (r *Reconciler) Mapped(ref domain.IDRef) (int64, bool) {
	id, ok := r.batch[ref]
	return id, ok
}

// Resolve returns the canonical id of a live paper of the owner. The batch
// mapping wins, then previously verified ids, then storage.
func (r *Reconciler) Resolve(ctx context.Context, ref domain.IDRef) (int64, bool, error) {
	if ref.IsZero() {
		return 0, false, nil
	}
	if id, ok := r.batch[ref]; ok {
		return id, r.verified[id], nil
	}

	id, ok := ref.ServerID()
	if !ok {
		return 0, false, nil
	}

	if live, seen := r.verified[id]; seen {
		return id, live, nil
	}

	live, err := r.lookup.LiveExists(ctx, r.ownerID, id)
	if err != nil {
		return 0, false, err
	}
	r.verified[id] = live

	return id, live, nil
}

// ResolveAll resolves refs in order, dropping the ones that cannot be
// resolved and duplicates.
func (r *Reconciler) ResolveAll(ctx context.Context, refs []domain.IDRef) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	seen := make(map[int64]bool, len(refs))
	for _, ref := range refs {
		id, ok, err := r.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
