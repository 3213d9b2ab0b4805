package repository

import (
	"context"
	"fmt"

	"paperlib-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// EventSink receives a copy of every committed sync event.
type EventSink interface {
	Publish(ctx context.Context, event *domain.SyncEvent) error
}

type couchEventRepository struct {
	client *kivik.Client
	dbName string
}

// NewCouchEventRepository mirrors sync events into a CouchDB database
// so they can be replicated off the server.
func NewCouchEventRepository(client *kivik.Client, dbName string) EventSink {
	return &couchEventRepository{
		client: client,
		dbName: dbName,
	}
}

type couchEventDoc struct {
	*domain.SyncEvent
	DocType string `json:"doc_type"`
}

func (r *couchEventRepository) Publish(ctx context.Context, event *domain.SyncEvent) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("sync_event:%s", event.ID)
	_, err := db.Put(ctx, docID, couchEventDoc{SyncEvent: event, DocType: "sync_event"})
	if err != nil {
		return fmt.Errorf("failed to publish sync event: %w", err)
	}

	return nil
}
