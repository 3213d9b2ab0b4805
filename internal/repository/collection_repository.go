package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"paperlib-sync-server/internal/domain"
)

type CollectionRepository interface {
	Create(ctx context.Context, collection *domain.Collection) error
	// FindByID returns live and soft-deleted collections of the owner.
	FindByID(ctx context.Context, ownerID string, id int64) (*domain.Collection, error)
	List(ctx context.Context, ownerID string) ([]*domain.Collection, error)
	Update(ctx context.Context, collection *domain.Collection) error
	ChangedSince(ctx context.Context, ownerID string, since *time.Time) ([]*domain.Collection, error)
	DeletedSince(ctx context.Context, ownerID string, since *time.Time) ([]int64, error)
	Count(ctx context.Context, ownerID string) (domain.EntityCount, error)
	DeleteAll(ctx context.Context, ownerID string) (int64, error)
}

type collectionRepository struct {
	db DBTX
}

func NewCollectionRepository(db DBTX) CollectionRepository {
	return &collectionRepository{db: db}
}

const collectionColumns = `id, owner_id, name, icon, color, filters, version,
	created_at, updated_at, deleted_at, client_tag`

func scanCollection(scan func(dest ...any) error) (*domain.Collection, error) {
	var c domain.Collection
	var filters string
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64

	err := scan(&c.ID, &c.OwnerID, &c.Name, &c.Icon, &c.Color, &filters, &c.Version,
		&createdAt, &updatedAt, &deletedAt, &c.ClientTag)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(filters, &c.Filters); err != nil {
		return nil, fmt.Errorf("failed to decode filters of collection %d: %w", c.ID, err)
	}
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)
	c.DeletedAt = timePtr(deletedAt)

	return &c, nil
}

func (r *collectionRepository) Create(ctx context.Context, c *domain.Collection) error {
	filters, err := marshalJSON(c.Filters, "{}")
	if err != nil {
		return fmt.Errorf("failed to encode filters: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO collections (owner_id, name, icon, color, filters, version,
			created_at, updated_at, deleted_at, client_tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.OwnerID, c.Name, c.Icon, c.Color, filters, c.Version,
		toNanos(c.CreatedAt), toNanos(c.UpdatedAt), nullableNanos(c.DeletedAt), c.ClientTag)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read collection id: %w", err)
	}
	c.ID = id

	return nil
}

func (r *collectionRepository) FindByID(ctx context.Context, ownerID string, id int64) (*domain.Collection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE owner_id = ? AND id = ?`, ownerID, id)

	c, err := scanCollection(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	return c, nil
}

func (r *collectionRepository) List(ctx context.Context, ownerID string) ([]*domain.Collection, error) {
	return r.query(ctx, `SELECT `+collectionColumns+` FROM collections
		WHERE owner_id = ? AND deleted_at IS NULL ORDER BY id`, ownerID)
}

func (r *collectionRepository) Update(ctx context.Context, c *domain.Collection) error {
	filters, err := marshalJSON(c.Filters, "{}")
	if err != nil {
		return fmt.Errorf("failed to encode filters: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE collections SET name = ?, icon = ?, color = ?, filters = ?, version = ?,
			created_at = ?, updated_at = ?, deleted_at = ?, client_tag = ?
		WHERE owner_id = ? AND id = ?
	`, c.Name, c.Icon, c.Color, filters, c.Version,
		toNanos(c.CreatedAt), toNanos(c.UpdatedAt), nullableNanos(c.DeletedAt), c.ClientTag,
		c.OwnerID, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *collectionRepository) ChangedSince(ctx context.Context, ownerID string, since *time.Time) ([]*domain.Collection, error) {
	return r.query(ctx, `SELECT `+collectionColumns+` FROM collections
		WHERE owner_id = ? AND deleted_at IS NULL AND updated_at > ? ORDER BY id`, ownerID, sinceNanos(since))
}

func (r *collectionRepository) DeletedSince(ctx context.Context, ownerID string, since *time.Time) ([]int64, error) {
	return queryIDs(ctx, r.db, `SELECT id FROM collections
		WHERE owner_id = ? AND deleted_at IS NOT NULL AND deleted_at > ? ORDER BY id`, ownerID, sinceNanos(since))
}

func (r *collectionRepository) Count(ctx context.Context, ownerID string) (domain.EntityCount, error) {
	return countRows(ctx, r.db, "collections", ownerID)
}

func (r *collectionRepository) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to wipe collections: %w", err)
	}
	return res.RowsAffected()
}

func (r *collectionRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Collection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := []*domain.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}
