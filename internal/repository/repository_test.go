package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"paperlib-sync-server/internal/database"
	"paperlib-sync-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := database.Open(database.DefaultOptions(filepath.Join(t.TempDir(), "library.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), db
}

func strPtr(s string) *string { return &s }

func newPaper(owner, title string) *domain.Paper {
	now := time.Now().UTC()
	return &domain.Paper{
		OwnerID:   owner,
		Title:     title,
		Authors:   []string{"Ada", "Grace"},
		Tags:      []string{"ml"},
		Status:    domain.PaperStatusToRead,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPaperRepository_CreateAndFind(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	papers := store.Repos().Papers

	year := 2021
	paper := newPaper("u1", "Attention")
	paper.Year = &year
	paper.DOI = strPtr("10.1/attn")
	paper.RelatedPaperIDs = []int64{7}
	require.NoError(t, papers.Create(ctx, paper))
	require.NotZero(t, paper.ID)

	got, err := papers.FindByID(ctx, "u1", paper.ID)
	require.NoError(t, err)
	assert.Equal(t, "Attention", got.Title)
	assert.Equal(t, []string{"Ada", "Grace"}, got.Authors)
	assert.Equal(t, []int64{7}, got.RelatedPaperIDs)
	require.NotNil(t, got.Year)
	assert.Equal(t, 2021, *got.Year)
	assert.Equal(t, paper.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())
	assert.Nil(t, got.DeletedAt)

	byDOI, err := papers.FindByDOI(ctx, "u1", "10.1/attn")
	require.NoError(t, err)
	assert.Equal(t, paper.ID, byDOI.ID)

	_, err = papers.FindByID(ctx, "u2", paper.ID)
	assert.True(t, errors.Is(err, ErrNotFound), "papers are scoped to their owner")
}

func TestPaperRepository_DeltaQueries(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	papers := store.Repos().Papers

	base := time.Now().UTC().Add(-time.Hour)

	old := newPaper("u1", "old")
	old.UpdatedAt = base
	require.NoError(t, papers.Create(ctx, old))

	fresh := newPaper("u1", "fresh")
	fresh.UpdatedAt = base.Add(30 * time.Minute)
	require.NoError(t, papers.Create(ctx, fresh))

	gone := newPaper("u1", "gone")
	deletedAt := base.Add(40 * time.Minute)
	gone.DeletedAt = &deletedAt
	require.NoError(t, papers.Create(ctx, gone))

	checkpoint := base.Add(10 * time.Minute)

	changed, err := papers.ChangedSince(ctx, "u1", &checkpoint)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, fresh.ID, changed[0].ID)

	all, err := papers.ChangedSince(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2, "full set excludes tombstones")

	deleted, err := papers.DeletedSince(ctx, "u1", &checkpoint)
	require.NoError(t, err)
	assert.Equal(t, []int64{gone.ID}, deleted)

	later := base.Add(50 * time.Minute)
	deleted, err = papers.DeletedSince(ctx, "u1", &later)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	count, err := papers.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityCount{Live: 2, Deleted: 1}, count)

	live, err := papers.LiveExists(ctx, "u1", gone.ID)
	require.NoError(t, err)
	assert.False(t, live)
}

func TestPaperRepository_UpdateMissing(t *testing.T) {
	store, _ := newTestStore(t)
	paper := newPaper("u1", "x")
	paper.ID = 999
	err := store.Repos().Papers.Update(context.Background(), paper)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCollectionRepository_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	collections := store.Repos().Collections

	status := domain.PaperStatusReading
	now := time.Now().UTC()
	c := &domain.Collection{
		OwnerID:   "u1",
		Name:      "Reading list",
		Filters:   domain.CollectionFilters{Status: &status, Tags: []string{"nlp"}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, collections.Create(ctx, c))

	got, err := collections.FindByID(ctx, "u1", c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Filters.Status)
	assert.Equal(t, domain.PaperStatusReading, *got.Filters.Status)
	assert.Equal(t, []string{"nlp"}, got.Filters.Tags)

	got.Name = "Renamed"
	got.Version = 2
	require.NoError(t, collections.Update(ctx, got))

	list, err := collections.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Name)
	assert.Equal(t, int64(2), list[0].Version)
}

func TestAnnotationRepository_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repos := store.Repos()

	paper := newPaper("u1", "host")
	require.NoError(t, repos.Papers.Create(ctx, paper))

	page := 3
	now := time.Now().UTC()
	a := &domain.Annotation{
		OwnerID:    "u1",
		PaperID:    paper.ID,
		Type:       domain.AnnotationHighlight,
		PageNumber: &page,
		Position:   json.RawMessage(`{"x":1,"y":2}`),
		Content:    "key result",
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repos.Annotations.Create(ctx, a))

	got, err := repos.Annotations.FindByID(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":2}`, string(got.Position))
	require.NotNil(t, got.PageNumber)
	assert.Equal(t, 3, *got.PageNumber)

	byPaper, err := repos.Annotations.ListByPaper(ctx, "u1", paper.ID)
	require.NoError(t, err)
	assert.Len(t, byPaper, 1)
}

func TestAnnotationRepository_RejectsUnknownPaper(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Now().UTC()
	err := store.Repos().Annotations.Create(context.Background(), &domain.Annotation{
		OwnerID: "u1", PaperID: 12345, Type: domain.AnnotationNote, Version: 1, CreatedAt: now, UpdatedAt: now,
	})
	assert.Error(t, err)
}

func TestUserRepository_Checkpoint(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	users := store.Repos().Users

	_, err := users.FindByID(ctx, "u1")
	assert.True(t, errors.Is(err, ErrNotFound))

	user, err := users.Ensure(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, user.LastSyncedAt)

	syncedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, users.UpdateLastSynced(ctx, "u1", syncedAt))

	user, err = users.Ensure(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user.LastSyncedAt)
	assert.True(t, syncedAt.Equal(*user.LastSyncedAt))

	require.NoError(t, users.ResetLastSynced(ctx, "u1"))
	user, err = users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, user.LastSyncedAt)
}

func TestSyncEventRepository_AppendAndList(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	events := store.Repos().SyncEvents

	base := time.Now().UTC()
	for i, typ := range []domain.SyncEventType{domain.SyncEventSync, domain.SyncEventImport} {
		require.NoError(t, events.Append(ctx, &domain.SyncEvent{
			ID:        string(typ),
			UserID:    "u1",
			Type:      typ,
			Created:   i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := events.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.SyncEventImport, list[0].Type, "newest first")
	assert.Nil(t, list[0].Checkpoint)
	assert.Equal(t, 2, list[0].Created)
}

func TestTx_SavepointIsolatesFailures(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.Savepoint(ctx, func() error {
			return tx.Papers.Create(ctx, newPaper("u1", "kept"))
		}))

		err := tx.Savepoint(ctx, func() error {
			if err := tx.Papers.Create(ctx, newPaper("u1", "discarded")); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		return nil
	})
	require.NoError(t, err)

	list, err := store.Repos().Papers.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "kept", list[0].Title)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.Papers.Create(ctx, newPaper("u1", "never")))
		return errors.New("abort")
	})
	require.Error(t, err)

	count, err := store.Repos().Papers.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count.Live)
}

func TestIsUniqueViolation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	papers := store.Repos().Papers

	first := newPaper("u1", "first")
	first.DOI = strPtr("10.1/dup")
	require.NoError(t, papers.Create(ctx, first))

	second := newPaper("u1", "second")
	second.DOI = strPtr("10.1/dup")
	err := papers.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(errors.New("other")))
}
