package repository

import (
	"context"
	"database/sql"
	"fmt"

	"paperlib-sync-server/internal/domain"
)

type SyncEventRepository interface {
	Append(ctx context.Context, event *domain.SyncEvent) error
	// ListByUser returns the most recent events first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.SyncEvent, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

type syncEventRepository struct {
	db DBTX
}

func NewSyncEventRepository(db DBTX) SyncEventRepository {
	return &syncEventRepository{db: db}
}

func (r *syncEventRepository) Append(ctx context.Context, e *domain.SyncEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_events (id, user_id, type, checkpoint, client_tag,
			created_count, updated_count, deleted_count, conflict_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, string(e.Type), nullableNanos(e.Checkpoint), e.ClientTag,
		e.Created, e.Updated, e.Deleted, e.Conflicts, toNanos(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to record sync event: %w", err)
	}
	return nil
}

func (r *syncEventRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.SyncEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, checkpoint, client_tag,
			created_count, updated_count, deleted_count, conflict_count, created_at
		FROM sync_events WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync events: %w", err)
	}
	defer rows.Close()

	events := []*domain.SyncEvent{}
	for rows.Next() {
		var e domain.SyncEvent
		var checkpoint sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &checkpoint, &e.ClientTag,
			&e.Created, &e.Updated, &e.Deleted, &e.Conflicts, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync event: %w", err)
		}
		e.Checkpoint = timePtr(checkpoint)
		e.CreatedAt = fromNanos(createdAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *syncEventRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_events WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to wipe sync events: %w", err)
	}
	return res.RowsAffected()
}
