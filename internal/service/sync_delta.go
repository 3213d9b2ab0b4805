package service

import (
	"context"
	"time"

	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/repository"
)

// pullChanges returns what the client has to apply to catch up with the
// server since the checkpoint. A nil checkpoint returns the whole live set
// and every tombstone.
func pullChanges(ctx context.Context, repos *repository.Repositories, ownerID string, since *time.Time) (*domain.ServerChanges, error) {
	var (
		changes domain.ServerChanges
		err     error
	)

	if changes.Papers, err = repos.Papers.ChangedSince(ctx, ownerID, since); err != nil {
		return nil, err
	}
	if changes.Collections, err = repos.Collections.ChangedSince(ctx, ownerID, since); err != nil {
		return nil, err
	}
	if changes.Annotations, err = repos.Annotations.ChangedSince(ctx, ownerID, since); err != nil {
		return nil, err
	}

	if changes.Deleted.Papers, err = repos.Papers.DeletedSince(ctx, ownerID, since); err != nil {
		return nil, err
	}
	if changes.Deleted.Collections, err = repos.Collections.DeletedSince(ctx, ownerID, since); err != nil {
		return nil, err
	}
	if changes.Deleted.Annotations, err = repos.Annotations.DeletedSince(ctx, ownerID, since); err != nil {
		return nil, err
	}

	return &changes, nil
}
