package service

import (
	"context"
	"errors"
	"fmt"

	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/repository"
)

// PaperService serves direct paper writes from the REST API. It shares the
// sync engine's rules, per-user lock and change notifications.
type PaperService struct {
	sync *SyncService
}

func NewPaperService(syncService *SyncService) *PaperService {
	return &PaperService{sync: syncService}
}

func (s *PaperService) List(ctx context.Context, userID string) ([]*domain.Paper, error) {
	return s.sync.store.Repos().Papers.List(ctx, userID)
}

func (s *PaperService) GetByID(ctx context.Context, userID string, id int64) (*domain.Paper, error) {
	paper, err := s.sync.store.Repos().Papers.FindByID(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if paper.IsDeleted() {
		return nil, ErrNotFound
	}
	return paper, nil
}

// Create adds a paper. A DOI the user already has updates or resurrects
// that paper instead; created reports which one happened.
func (s *PaperService) Create(ctx context.Context, userID, clientID string, change *domain.PaperChange) (paper *domain.Paper, created bool, err error) {
	paper, out, err := s.write(ctx, userID, clientID, func(a *changeApplier) (*domain.Paper, outcome, error) {
		return a.createPaper(ctx, change)
	})
	if err != nil {
		return nil, false, err
	}
	return paper, out == outcomeCreated, nil
}

func (s *PaperService) Update(ctx context.Context, userID, clientID string, id int64, change *domain.PaperChange) (*domain.Paper, error) {
	change.ID = domain.RefFromID(id)
	change.LocalID = ""

	paper, _, err := s.write(ctx, userID, clientID, func(a *changeApplier) (*domain.Paper, outcome, error) {
		return a.updatePaper(ctx, change)
	})
	return paper, err
}

// Delete soft-deletes a paper. Deleting an already deleted paper succeeds.
func (s *PaperService) Delete(ctx context.Context, userID, clientID string, id int64) error {
	paper, _, err := s.write(ctx, userID, clientID, func(a *changeApplier) (*domain.Paper, outcome, error) {
		return a.deletePaper(ctx, domain.RefFromID(id))
	})
	if err != nil {
		return err
	}
	if paper == nil {
		return ErrNotFound
	}
	return nil
}

// Restore brings a soft-deleted paper back. Restoring a live paper returns
// it unchanged.
func (s *PaperService) Restore(ctx context.Context, userID, clientID string, id int64) (*domain.Paper, error) {
	paper, _, err := s.write(ctx, userID, clientID, func(a *changeApplier) (*domain.Paper, outcome, error) {
		return a.restorePaper(ctx, id)
	})
	return paper, err
}

func (s *PaperService) write(ctx context.Context, userID, clientID string, fn func(a *changeApplier) (*domain.Paper, outcome, error)) (*domain.Paper, outcome, error) {
	unlock := s.sync.locks.Lock(userID)
	defer unlock()

	var (
		paper *domain.Paper
		out   outcome
	)

	err := s.sync.store.WithinTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.Users.Ensure(ctx, userID); err != nil {
			return err
		}

		var err error
		paper, out, err = fn(newChangeApplier(tx, userID, clientID, s.sync.now(), s.sync.pdfs, s.sync.log))
		return err
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, outcomeIgnored, fmt.Errorf("%w: %v", ErrDuplicateDOI, err)
		}
		return nil, outcomeIgnored, err
	}

	if out != outcomeIgnored {
		s.sync.notify(userID, clientID, paper.UpdatedAt)
	}
	return paper, out, nil
}

func (a *changeApplier) restorePaper(ctx context.Context, id int64) (*domain.Paper, outcome, error) {
	paper, err := a.tx.Papers.FindByID(ctx, a.ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, outcomeIgnored, ErrNotFound
	}
	if err != nil {
		return nil, outcomeIgnored, err
	}
	if !paper.IsDeleted() {
		return paper, outcomeIgnored, nil
	}

	paper.DeletedAt = nil
	paper.Version++
	paper.UpdatedAt = a.now
	paper.ClientTag = a.clientTag
	if err := a.tx.Papers.Update(ctx, paper); err != nil {
		return nil, outcomeIgnored, err
	}

	return paper, outcomeUpdated, nil
}
