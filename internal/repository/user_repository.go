package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"paperlib-sync-server/internal/domain"
)

type UserRepository interface {
	// Ensure creates the user row on first contact and returns it.
	Ensure(ctx context.Context, id string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdateLastSynced(ctx context.Context, id string, syncedAt time.Time) error
	ResetLastSynced(ctx context.Context, id string) error
}

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Ensure(ctx context.Context, id string) (*domain.User, error) {
	now := toNanos(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, last_synced_at, created_at, updated_at)
		VALUES (?, NULL, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return r.FindByID(ctx, id)
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	var lastSynced sql.NullInt64
	var createdAt, updatedAt int64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, last_synced_at, created_at, updated_at FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &lastSynced, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	user.LastSyncedAt = timePtr(lastSynced)
	user.CreatedAt = fromNanos(createdAt)
	user.UpdatedAt = fromNanos(updatedAt)

	return &user, nil
}

func (r *userRepository) UpdateLastSynced(ctx context.Context, id string, syncedAt time.Time) error {
	now := toNanos(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, last_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_synced_at = excluded.last_synced_at, updated_at = excluded.updated_at
	`, id, toNanos(syncedAt), now, now)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}
	return nil
}

func (r *userRepository) ResetLastSynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_synced_at = NULL, updated_at = ? WHERE id = ?`, toNanos(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to reset last sync: %w", err)
	}
	return nil
}
