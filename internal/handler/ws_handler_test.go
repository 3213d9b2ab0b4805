package handler

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"paperlib-sync-server/internal/database"
	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/repository"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/internal/websocket"
	"paperlib-sync-server/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSFixture(t *testing.T) (*WebSocketMessageHandler, *websocket.Client) {
	t.Helper()

	db, err := database.Open(database.DefaultOptions(filepath.Join(t.TempDir(), "library.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.Discard()
	syncService := service.NewSyncService(repository.NewStore(db), service.SyncOptions{}, log)
	manager := websocket.NewManager(5, time.Second, time.Minute, 30*time.Second, log)

	return NewWebSocketMessageHandler(syncService, log), websocket.NewClient("conn-1", "u1", "tablet", nil, manager)
}

func receive(t *testing.T, client *websocket.Client) *websocket.Message {
	t.Helper()

	select {
	case data := <-client.Send:
		var msg websocket.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	default:
		t.Fatal("no message queued for client")
		return nil
	}
}

func TestWebSocketMessageHandler_Ping(t *testing.T) {
	h, client := newWSFixture(t)

	require.NoError(t, h.HandleWebSocketMessage(client, &websocket.Message{Type: websocket.TypePing}))

	assert.Equal(t, websocket.TypePong, receive(t, client).Type)
}

func TestWebSocketMessageHandler_SyncRequest(t *testing.T) {
	h, client := newWSFixture(t)

	msg, err := websocket.NewMessage(websocket.TypeSyncRequest, map[string]interface{}{
		"changes": map[string]interface{}{
			"papers": map[string]interface{}{
				"created": []map[string]interface{}{{"localId": "tmp-1", "title": "Over the wire"}},
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleWebSocketMessage(client, msg))

	reply := receive(t, client)
	require.Equal(t, websocket.TypeSyncResponse, reply.Type)

	var res domain.SyncResponse
	require.NoError(t, reply.UnmarshalPayload(&res))
	assert.Equal(t, 1, res.AppliedChanges.Papers.Created)
	require.Len(t, res.ServerChanges.Papers, 1)
	assert.Equal(t, "tablet", res.ServerChanges.Papers[0].ClientTag)
}

func TestWebSocketMessageHandler_SyncRequestTooLarge(t *testing.T) {
	db, err := database.Open(database.DefaultOptions(filepath.Join(t.TempDir(), "library.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.Discard()
	syncService := service.NewSyncService(repository.NewStore(db), service.SyncOptions{MaxBatchItems: 1}, log)
	h := NewWebSocketMessageHandler(syncService, log)
	client := websocket.NewClient("conn-1", "u1", "tablet", nil, websocket.NewManager(5, time.Second, time.Minute, 30*time.Second, log))

	msg, err := websocket.NewMessage(websocket.TypeSyncRequest, map[string]interface{}{
		"clientId": "tablet",
		"changes": map[string]interface{}{
			"papers": map[string]interface{}{"deleted": []int{1, 2}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleWebSocketMessage(client, msg))

	reply := receive(t, client)
	require.Equal(t, websocket.TypeError, reply.Type)
	var payload websocket.ErrorPayload
	require.NoError(t, reply.UnmarshalPayload(&payload))
	assert.Contains(t, payload.Error, "too large")
}
