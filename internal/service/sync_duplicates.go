package service

import (
	"context"
	"errors"

	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/repository"
)

type DuplicateKind int

const (
	NoDuplicate DuplicateKind = iota
	LiveDuplicate
	DeletedDuplicate
)

type doiFinder interface {
	FindByDOI(ctx context.Context, ownerID, doi string) (*domain.Paper, error)
}

// DuplicateResolver decides what creating a paper with a known DOI means.
// DOIs are unique per owner across live and soft-deleted papers.
type DuplicateResolver struct {
	papers doiFinder
}

func NewDuplicateResolver(papers doiFinder) *DuplicateResolver {
	return &DuplicateResolver{papers: papers}
}

func (d *DuplicateResolver) Resolve(ctx context.Context, ownerID, doi string) (DuplicateKind, *domain.Paper, error) {
	if doi == "" {
		return NoDuplicate, nil, nil
	}

	existing, err := d.papers.FindByDOI(ctx, ownerID, doi)
	if errors.Is(err, repository.ErrNotFound) {
		return NoDuplicate, nil, nil
	}
	if err != nil {
		return NoDuplicate, nil, err
	}

	if existing.IsDeleted() {
		return DeletedDuplicate, existing, nil
	}
	return LiveDuplicate, existing, nil
}
