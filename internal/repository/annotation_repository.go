package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paperlib-sync-server/internal/domain"
)

type AnnotationRepository interface {
	Create(ctx context.Context, annotation *domain.Annotation) error
	// FindByID returns live and soft-deleted annotations of the owner.
	FindByID(ctx context.Context, ownerID string, id int64) (*domain.Annotation, error)
	List(ctx context.Context, ownerID string) ([]*domain.Annotation, error)
	ListByPaper(ctx context.Context, ownerID string, paperID int64) ([]*domain.Annotation, error)
	Update(ctx context.Context, annotation *domain.Annotation) error
	ChangedSince(ctx context.Context, ownerID string, since *time.Time) ([]*domain.Annotation, error)
	DeletedSince(ctx context.Context, ownerID string, since *time.Time) ([]int64, error)
	Count(ctx context.Context, ownerID string) (domain.EntityCount, error)
	DeleteAll(ctx context.Context, ownerID string) (int64, error)
}

type annotationRepository struct {
	db DBTX
}

func NewAnnotationRepository(db DBTX) AnnotationRepository {
	return &annotationRepository{db: db}
}

const annotationColumns = `id, owner_id, paper_id, type, page_number, position, content, color,
	version, created_at, updated_at, deleted_at, client_tag`

func scanAnnotation(scan func(dest ...any) error) (*domain.Annotation, error) {
	var a domain.Annotation
	var page sql.NullInt64
	var position sql.NullString
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64

	err := scan(&a.ID, &a.OwnerID, &a.PaperID, &a.Type, &page, &position, &a.Content, &a.Color,
		&a.Version, &createdAt, &updatedAt, &deletedAt, &a.ClientTag)
	if err != nil {
		return nil, err
	}

	a.PageNumber = intPtr(page)
	if position.Valid && position.String != "" {
		a.Position = json.RawMessage(position.String)
	}
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)
	a.DeletedAt = timePtr(deletedAt)

	return &a, nil
}

func positionArg(p json.RawMessage) sql.NullString {
	if len(p) == 0 || string(p) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(p), Valid: true}
}

func (r *annotationRepository) Create(ctx context.Context, a *domain.Annotation) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO annotations (owner_id, paper_id, type, page_number, position, content, color,
			version, created_at, updated_at, deleted_at, client_tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.OwnerID, a.PaperID, string(a.Type), nullInt(a.PageNumber), positionArg(a.Position), a.Content, a.Color,
		a.Version, toNanos(a.CreatedAt), toNanos(a.UpdatedAt), nullableNanos(a.DeletedAt), a.ClientTag)
	if err != nil {
		return fmt.Errorf("failed to create annotation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read annotation id: %w", err)
	}
	a.ID = id

	return nil
}

func (r *annotationRepository) FindByID(ctx context.Context, ownerID string, id int64) (*domain.Annotation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+annotationColumns+` FROM annotations WHERE owner_id = ? AND id = ?`, ownerID, id)

	a, err := scanAnnotation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find annotation: %w", err)
	}
	return a, nil
}

func (r *annotationRepository) List(ctx context.Context, ownerID string) ([]*domain.Annotation, error) {
	return r.query(ctx, `SELECT `+annotationColumns+` FROM annotations
		WHERE owner_id = ? AND deleted_at IS NULL ORDER BY id`, ownerID)
}

func (r *annotationRepository) ListByPaper(ctx context.Context, ownerID string, paperID int64) ([]*domain.Annotation, error) {
	return r.query(ctx, `SELECT `+annotationColumns+` FROM annotations
		WHERE owner_id = ? AND paper_id = ? AND deleted_at IS NULL ORDER BY id`, ownerID, paperID)
}

func (r *annotationRepository) Update(ctx context.Context, a *domain.Annotation) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE annotations SET paper_id = ?, type = ?, page_number = ?, position = ?, content = ?,
			color = ?, version = ?, created_at = ?, updated_at = ?, deleted_at = ?, client_tag = ?
		WHERE owner_id = ? AND id = ?
	`, a.PaperID, string(a.Type), nullInt(a.PageNumber), positionArg(a.Position), a.Content,
		a.Color, a.Version, toNanos(a.CreatedAt), toNanos(a.UpdatedAt), nullableNanos(a.DeletedAt), a.ClientTag,
		a.OwnerID, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *annotationRepository) ChangedSince(ctx context.Context, ownerID string, since *time.Time) ([]*domain.Annotation, error) {
	return r.query(ctx, `SELECT `+annotationColumns+` FROM annotations
		WHERE owner_id = ? AND deleted_at IS NULL AND updated_at > ? ORDER BY id`, ownerID, sinceNanos(since))
}

func (r *annotationRepository) DeletedSince(ctx context.Context, ownerID string, since *time.Time) ([]int64, error) {
	return queryIDs(ctx, r.db, `SELECT id FROM annotations
		WHERE owner_id = ? AND deleted_at IS NOT NULL AND deleted_at > ? ORDER BY id`, ownerID, sinceNanos(since))
}

func (r *annotationRepository) Count(ctx context.Context, ownerID string) (domain.EntityCount, error) {
	return countRows(ctx, r.db, "annotations", ownerID)
}

func (r *annotationRepository) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to wipe annotations: %w", err)
	}
	return res.RowsAffected()
}

func (r *annotationRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Annotation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	annotations := []*domain.Annotation{}
	for rows.Next() {
		a, err := scanAnnotation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}
