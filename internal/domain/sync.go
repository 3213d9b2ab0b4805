package domain

import "time"

// EntityChanges is the per-type section of a sync batch.
type EntityChanges[T any] struct {
	Created []T     `json:"created"`
	Updated []T     `json:"updated"`
	Deleted []IDRef `json:"deleted"`
}

func (c *EntityChanges[T]) Len() int {
	return len(c.Created) + len(c.Updated) + len(c.Deleted)
}

type ChangeSet struct {
	Papers      EntityChanges[PaperChange]      `json:"papers"`
	Collections EntityChanges[CollectionChange] `json:"collections"`
	Annotations EntityChanges[AnnotationChange] `json:"annotations"`
}

// Len is the combined item count across all three entity types.
func (c *ChangeSet) Len() int {
	return c.Papers.Len() + c.Collections.Len() + c.Annotations.Len()
}

type SyncRequest struct {
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
	ClientID     string     `json:"clientId" validate:"required,max=100"`
	Changes      ChangeSet  `json:"changes"`
}

type FullSyncRequest struct {
	ClientID string `json:"clientId" validate:"required,max=100"`
}

type ImportRequest struct {
	ClientID string    `json:"clientId" validate:"required,max=100"`
	Changes  ChangeSet `json:"changes"`
}

type ItemConflict struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ApplyReport counts the outcomes of one entity type in one batch.
type ApplyReport struct {
	Created   int            `json:"created"`
	Updated   int            `json:"updated"`
	Deleted   int            `json:"deleted"`
	Conflicts []ItemConflict `json:"conflicts"`
}

func NewApplyReport() *ApplyReport {
	return &ApplyReport{Conflicts: []ItemConflict{}}
}

func (r *ApplyReport) Conflict(ref IDRef, reason string) {
	r.Conflicts = append(r.Conflicts, ItemConflict{ID: ref.String(), Reason: reason})
}

type AppliedChanges struct {
	Papers      *ApplyReport `json:"papers"`
	Collections *ApplyReport `json:"collections"`
	Annotations *ApplyReport `json:"annotations"`
}

func NewAppliedChanges() *AppliedChanges {
	return &AppliedChanges{
		Papers:      NewApplyReport(),
		Collections: NewApplyReport(),
		Annotations: NewApplyReport(),
	}
}

// Total sums the per-type counters.
func (a *AppliedChanges) Total() (created, updated, deleted, conflicts int) {
	for _, r := range []*ApplyReport{a.Papers, a.Collections, a.Annotations} {
		created += r.Created
		updated += r.Updated
		deleted += r.Deleted
		conflicts += len(r.Conflicts)
	}
	return created, updated, deleted, conflicts
}

// Tombstones are soft-deleted ids per entity type.
type Tombstones struct {
	Papers      []int64 `json:"papers"`
	Collections []int64 `json:"collections"`
	Annotations []int64 `json:"annotations"`
}

type ServerChanges struct {
	Papers      []*Paper      `json:"papers"`
	Collections []*Collection `json:"collections"`
	Annotations []*Annotation `json:"annotations"`
	Deleted     Tombstones    `json:"deleted"`
}

type SyncResponse struct {
	AppliedChanges *AppliedChanges `json:"appliedChanges,omitempty"`
	ServerChanges  *ServerChanges  `json:"serverChanges,omitempty"`
	SyncedAt       time.Time       `json:"syncedAt"`
}

type SyncEventType string

const (
	SyncEventSync     SyncEventType = "sync"
	SyncEventFullSync SyncEventType = "full_sync"
	SyncEventImport   SyncEventType = "import"
)

// SyncEvent is one entry of the per-user audit log.
type SyncEvent struct {
	ID         string        `json:"id" yaml:"id"`
	UserID     string        `json:"userId" yaml:"user_id"`
	Type       SyncEventType `json:"type" yaml:"type"`
	Checkpoint *time.Time    `json:"checkpoint" yaml:"checkpoint"`
	ClientTag  string        `json:"clientTag" yaml:"client_tag"`
	Created    int           `json:"created" yaml:"created"`
	Updated    int           `json:"updated" yaml:"updated"`
	Deleted    int           `json:"deleted" yaml:"deleted"`
	Conflicts  int           `json:"conflicts" yaml:"conflicts"`
	CreatedAt  time.Time     `json:"createdAt" yaml:"created_at"`
}

type EntityCount struct {
	Live    int `json:"live" yaml:"live"`
	Deleted int `json:"deleted" yaml:"deleted"`
}

type SyncStatus struct {
	UserID       string      `json:"userId" yaml:"user_id"`
	LastSyncedAt *time.Time  `json:"lastSyncedAt" yaml:"last_synced_at"`
	Papers       EntityCount `json:"papers" yaml:"papers"`
	Collections  EntityCount `json:"collections" yaml:"collections"`
	Annotations  EntityCount `json:"annotations" yaml:"annotations"`
}

// WipeResult counts the rows removed by a library wipe.
type WipeResult struct {
	Papers      int64 `json:"papers" yaml:"papers"`
	Collections int64 `json:"collections" yaml:"collections"`
	Annotations int64 `json:"annotations" yaml:"annotations"`
}
