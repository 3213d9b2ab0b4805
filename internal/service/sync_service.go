package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultMaxBatchItems = 1000

// ChangeNotifier is told about every committed write that changed a library.
type ChangeNotifier interface {
	NotifyLibraryChanged(userID, clientID string, syncedAt time.Time) error
}

type SyncOptions struct {
	MaxBatchItems int
	PDFs          PDFInspector
	Events        repository.EventSink
	Notifier      ChangeNotifier
}

// SyncService runs sync cycles: apply the client's batch, then pull
// everything the client has not seen, then advance its checkpoint.
type SyncService struct {
	store         *repository.Store
	maxBatchItems int
	pdfs          PDFInspector
	events        repository.EventSink
	notifier      ChangeNotifier
	locks         *userLocks
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewSyncService(store *repository.Store, opts SyncOptions, log logrus.FieldLogger) *SyncService {
	maxItems := opts.MaxBatchItems
	if maxItems <= 0 {
		maxItems = DefaultMaxBatchItems
	}

	return &SyncService{
		store:         store,
		maxBatchItems: maxItems,
		pdfs:          opts.PDFs,
		events:        opts.Events,
		notifier:      opts.Notifier,
		locks:         newUserLocks(),
		log:           log,
		now:           newSyncClock(time.Now).Now,
	}
}

func (s *SyncService) checkBatch(changes *domain.ChangeSet) error {
	if n := changes.Len(); n > s.maxBatchItems {
		return fmt.Errorf("%w: %d items, limit is %d", ErrBatchTooLarge, n, s.maxBatchItems)
	}
	return nil
}

// Sync applies the batch and returns the server changes since
// req.LastSyncedAt, including the ones just applied.
func (s *SyncService) Sync(ctx context.Context, userID string, req *domain.SyncRequest) (*domain.SyncResponse, error) {
	if err := s.checkBatch(&req.Changes); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var (
		resp  *domain.SyncResponse
		event *domain.SyncEvent
	)

	err := s.store.WithinTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.Users.Ensure(ctx, userID); err != nil {
			return err
		}

		applied, err := newChangeApplier(tx, userID, req.ClientID, s.now(), s.pdfs, s.log).Apply(ctx, &req.Changes)
		if err != nil {
			return err
		}

		syncedAt := s.now()
		serverChanges, err := pullChanges(ctx, tx.Repositories, userID, req.LastSyncedAt)
		if err != nil {
			return err
		}

		event, err = s.commitCheckpoint(ctx, tx, userID, domain.SyncEventSync, req.ClientID, syncedAt, applied)
		if err != nil {
			return err
		}

		resp = &domain.SyncResponse{
			AppliedChanges: applied,
			ServerChanges:  serverChanges,
			SyncedAt:       syncedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync failed: %w", err)
	}

	s.afterCommit(ctx, event)
	return resp, nil
}

// FullSync skips the apply phase and returns the complete library.
func (s *SyncService) FullSync(ctx context.Context, userID string, req *domain.FullSyncRequest) (*domain.SyncResponse, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var (
		resp  *domain.SyncResponse
		event *domain.SyncEvent
	)

	err := s.store.WithinTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.Users.Ensure(ctx, userID); err != nil {
			return err
		}

		syncedAt := s.now()
		serverChanges, err := pullChanges(ctx, tx.Repositories, userID, nil)
		if err != nil {
			return err
		}

		event, err = s.commitCheckpoint(ctx, tx, userID, domain.SyncEventFullSync, req.ClientID, syncedAt, nil)
		if err != nil {
			return err
		}

		resp = &domain.SyncResponse{
			ServerChanges: serverChanges,
			SyncedAt:      syncedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("full sync failed: %w", err)
	}

	s.afterCommit(ctx, event)
	return resp, nil
}

// Import applies a bulk batch without pulling and without moving the
// user's checkpoint.
func (s *SyncService) Import(ctx context.Context, userID string, req *domain.ImportRequest) (*domain.SyncResponse, error) {
	if err := s.checkBatch(&req.Changes); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var (
		resp  *domain.SyncResponse
		event *domain.SyncEvent
	)

	err := s.store.WithinTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.Users.Ensure(ctx, userID); err != nil {
			return err
		}

		applied, err := newChangeApplier(tx, userID, req.ClientID, s.now(), s.pdfs, s.log).Apply(ctx, &req.Changes)
		if err != nil {
			return err
		}

		importedAt := s.now()
		event = newSyncEvent(userID, domain.SyncEventImport, nil, req.ClientID, importedAt, applied)
		if err := tx.SyncEvents.Append(ctx, event); err != nil {
			return err
		}

		resp = &domain.SyncResponse{
			AppliedChanges: applied,
			SyncedAt:       importedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}

	s.afterCommit(ctx, event)
	return resp, nil
}

func (s *SyncService) Status(ctx context.Context, userID string) (*domain.SyncStatus, error) {
	repos := s.store.Repos()
	status := &domain.SyncStatus{UserID: userID}

	user, err := repos.Users.FindByID(ctx, userID)
	switch {
	case err == nil:
		status.LastSyncedAt = user.LastSyncedAt
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	if status.Papers, err = repos.Papers.Count(ctx, userID); err != nil {
		return nil, err
	}
	if status.Collections, err = repos.Collections.Count(ctx, userID); err != nil {
		return nil, err
	}
	if status.Annotations, err = repos.Annotations.Count(ctx, userID); err != nil {
		return nil, err
	}

	return status, nil
}

func (s *SyncService) Events(ctx context.Context, userID string, limit int) ([]*domain.SyncEvent, error) {
	return s.store.Repos().SyncEvents.ListByUser(ctx, userID, limit)
}

// Wipe hard-deletes the user's whole library and resets the checkpoint,
// so the next sync from any client starts from scratch.
func (s *SyncService) Wipe(ctx context.Context, userID, clientID string) (*domain.WipeResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var result domain.WipeResult
	err := s.store.WithinTx(ctx, func(tx *repository.Tx) error {
		var err error
		if result.Annotations, err = tx.Annotations.DeleteAll(ctx, userID); err != nil {
			return err
		}
		if result.Papers, err = tx.Papers.DeleteAll(ctx, userID); err != nil {
			return err
		}
		if result.Collections, err = tx.Collections.DeleteAll(ctx, userID); err != nil {
			return err
		}
		return tx.Users.ResetLastSynced(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("wipe failed: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"papers":      result.Papers,
		"collections": result.Collections,
		"annotations": result.Annotations,
	}).Info("library wiped")

	s.notify(userID, clientID, s.now())
	return &result, nil
}

func (s *SyncService) commitCheckpoint(ctx context.Context, tx *repository.Tx, userID string, typ domain.SyncEventType, clientID string, syncedAt time.Time, applied *domain.AppliedChanges) (*domain.SyncEvent, error) {
	if err := tx.Users.UpdateLastSynced(ctx, userID, syncedAt); err != nil {
		return nil, err
	}

	event := newSyncEvent(userID, typ, &syncedAt, clientID, syncedAt, applied)
	if err := tx.SyncEvents.Append(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func newSyncEvent(userID string, typ domain.SyncEventType, checkpoint *time.Time, clientID string, at time.Time, applied *domain.AppliedChanges) *domain.SyncEvent {
	event := &domain.SyncEvent{
		ID:         uuid.New().String(),
		UserID:     userID,
		Type:       typ,
		Checkpoint: checkpoint,
		ClientTag:  clientID,
		CreatedAt:  at,
	}
	if applied != nil {
		event.Created, event.Updated, event.Deleted, event.Conflicts = applied.Total()
	}
	return event
}

// afterCommit runs the side effects of a committed cycle. None of them can
// fail the request any more.
func (s *SyncService) afterCommit(ctx context.Context, event *domain.SyncEvent) {
	s.log.WithFields(logrus.Fields{
		"user_id":   event.UserID,
		"client_id": event.ClientTag,
		"type":      event.Type,
		"created":   event.Created,
		"updated":   event.Updated,
		"deleted":   event.Deleted,
		"conflicts": event.Conflicts,
	}).Info("sync committed")

	if s.events != nil {
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.WithError(err).WithField("event_id", event.ID).Warn("failed to mirror sync event")
		}
	}

	if event.Created+event.Updated+event.Deleted > 0 {
		s.notify(event.UserID, event.ClientTag, event.CreatedAt)
	}
}

func (s *SyncService) notify(userID, clientID string, at time.Time) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyLibraryChanged(userID, clientID, at); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to notify clients")
	}
}
