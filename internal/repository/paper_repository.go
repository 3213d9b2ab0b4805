package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"paperlib-sync-server/internal/domain"
)

type PaperRepository interface {
	Create(ctx context.Context, paper *domain.Paper) error
	// FindByID returns live and soft-deleted papers of the owner.
	FindByID(ctx context.Context, ownerID string, id int64) (*domain.Paper, error)
	// FindByDOI returns live and soft-deleted papers of the owner.
	FindByDOI(ctx context.Context, ownerID, doi string) (*domain.Paper, error)
	// LiveExists reports whether a live paper with id belongs to the owner.
	LiveExists(ctx context.Context, ownerID string, id int64) (bool, error)
	List(ctx context.Context, ownerID string) ([]*domain.Paper, error)
	Update(ctx context.Context, paper *domain.Paper) error
	ChangedSince(ctx context.Context, ownerID string, since *time.Time) ([]*domain.Paper, error)
	DeletedSince(ctx context.Context, ownerID string, since *time.Time) ([]int64, error)
	Count(ctx context.Context, ownerID string) (domain.EntityCount, error)
	DeleteAll(ctx context.Context, ownerID string) (int64, error)
}

type paperRepository struct {
	db DBTX
}

func NewPaperRepository(db DBTX) PaperRepository {
	return &paperRepository{db: db}
}

const paperColumns = `id, owner_id, title, authors, year, journal, doi, abstract, tags, status,
	related_paper_ids, notes, pdf_key, pdf_size, version, created_at, updated_at, deleted_at, client_tag`

type paperRow struct {
	authors, tags, related string
	doi, pdfKey            sql.NullString
	year, pdfSize          sql.NullInt64
	createdAt, updatedAt   int64
	deletedAt              sql.NullInt64
}

func scanPaper(scan func(dest ...any) error) (*domain.Paper, error) {
	var p domain.Paper
	var row paperRow

	err := scan(
		&p.ID, &p.OwnerID, &p.Title, &row.authors, &row.year, &p.Journal, &row.doi, &p.Abstract,
		&row.tags, &p.Status, &row.related, &p.Notes, &row.pdfKey, &row.pdfSize, &p.Version,
		&row.createdAt, &row.updatedAt, &row.deletedAt, &p.ClientTag,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(row.authors, &p.Authors); err != nil {
		return nil, fmt.Errorf("failed to decode authors of paper %d: %w", p.ID, err)
	}
	if err := unmarshalJSON(row.tags, &p.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of paper %d: %w", p.ID, err)
	}
	if err := unmarshalJSON(row.related, &p.RelatedPaperIDs); err != nil {
		return nil, fmt.Errorf("failed to decode related papers of paper %d: %w", p.ID, err)
	}
	if p.Authors == nil {
		p.Authors = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.RelatedPaperIDs == nil {
		p.RelatedPaperIDs = []int64{}
	}

	p.Year = intPtr(row.year)
	p.DOI = stringPtr(row.doi)
	p.PDFKey = stringPtr(row.pdfKey)
	p.PDFSize = int64Ptr(row.pdfSize)
	p.CreatedAt = fromNanos(row.createdAt)
	p.UpdatedAt = fromNanos(row.updatedAt)
	p.DeletedAt = timePtr(row.deletedAt)

	return &p, nil
}

func paperArgs(p *domain.Paper) ([]any, error) {
	authors, err := marshalJSON(p.Authors, "[]")
	if err != nil {
		return nil, fmt.Errorf("failed to encode authors: %w", err)
	}
	tags, err := marshalJSON(p.Tags, "[]")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	related, err := marshalJSON(p.RelatedPaperIDs, "[]")
	if err != nil {
		return nil, fmt.Errorf("failed to encode related papers: %w", err)
	}

	return []any{
		p.OwnerID, p.Title, authors, nullInt(p.Year), p.Journal, nullString(p.DOI), p.Abstract,
		tags, string(p.Status), related, p.Notes, nullString(p.PDFKey), nullInt64(p.PDFSize),
		p.Version, toNanos(p.CreatedAt), toNanos(p.UpdatedAt), nullableNanos(p.DeletedAt), p.ClientTag,
	}, nil
}

func (r *paperRepository) Create(ctx context.Context, paper *domain.Paper) error {
	args, err := paperArgs(paper)
	if err != nil {
		return fmt.Errorf("failed to create paper: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO papers (owner_id, title, authors, year, journal, doi, abstract, tags, status,
			related_paper_ids, notes, pdf_key, pdf_size, version, created_at, updated_at, deleted_at, client_tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to create paper: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read paper id: %w", err)
	}
	paper.ID = id

	return nil
}

func (r *paperRepository) FindByID(ctx context.Context, ownerID string, id int64) (*domain.Paper, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE owner_id = ? AND id = ?`, ownerID, id)

	paper, err := scanPaper(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find paper: %w", err)
	}
	return paper, nil
}

func (r *paperRepository) FindByDOI(ctx context.Context, ownerID, doi string) (*domain.Paper, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE owner_id = ? AND doi = ?`, ownerID, doi)

	paper, err := scanPaper(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find paper by doi: %w", err)
	}
	return paper, nil
}

func (r *paperRepository) LiveExists(ctx context.Context, ownerID string, id int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM papers WHERE owner_id = ? AND id = ? AND deleted_at IS NULL`, ownerID, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up paper: %w", err)
	}
	return n > 0, nil
}

func (r *paperRepository) List(ctx context.Context, ownerID string) ([]*domain.Paper, error) {
	return r.query(ctx, `SELECT `+paperColumns+` FROM papers
		WHERE owner_id = ? AND deleted_at IS NULL ORDER BY id`, ownerID)
}

func (r *paperRepository) Update(ctx context.Context, paper *domain.Paper) error {
	args, err := paperArgs(paper)
	if err != nil {
		return fmt.Errorf("failed to update paper: %w", err)
	}
	args = append(args[1:], paper.OwnerID, paper.ID)

	res, err := r.db.ExecContext(ctx, `
		UPDATE papers SET title = ?, authors = ?, year = ?, journal = ?, doi = ?, abstract = ?,
			tags = ?, status = ?, related_paper_ids = ?, notes = ?, pdf_key = ?, pdf_size = ?,
			version = ?, created_at = ?, updated_at = ?, deleted_at = ?, client_tag = ?
		WHERE owner_id = ? AND id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update paper: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *paperRepository) ChangedSince(ctx context.Context, ownerID string, since *time.Time) ([]*domain.Paper, error) {
	return r.query(ctx, `SELECT `+paperColumns+` FROM papers
		WHERE owner_id = ? AND deleted_at IS NULL AND updated_at > ? ORDER BY id`, ownerID, sinceNanos(since))
}

func (r *paperRepository) DeletedSince(ctx context.Context, ownerID string, since *time.Time) ([]int64, error) {
	return queryIDs(ctx, r.db, `SELECT id FROM papers
		WHERE owner_id = ? AND deleted_at IS NOT NULL AND deleted_at > ? ORDER BY id`, ownerID, sinceNanos(since))
}

func (r *paperRepository) Count(ctx context.Context, ownerID string) (domain.EntityCount, error) {
	return countRows(ctx, r.db, "papers", ownerID)
}

func (r *paperRepository) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM papers WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to wipe papers: %w", err)
	}
	return res.RowsAffected()
}

func (r *paperRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Paper, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := []*domain.Paper{}
	for rows.Next() {
		paper, err := scanPaper(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}

func queryIDs(ctx context.Context, db DBTX, query string, args ...any) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// countRows is only called with the fixed table names of this package.
func countRows(ctx context.Context, db DBTX, table, ownerID string) (domain.EntityCount, error) {
	var count domain.EntityCount
	err := db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN deleted_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN deleted_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM `+table+` WHERE owner_id = ?`, ownerID,
	).Scan(&count.Live, &count.Deleted)
	if err != nil {
		return count, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}
