package websocket

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestManager(maxConn int) *Manager {
	l := logrus.New()
	l.Out = io.Discard
	return NewManager(maxConn, time.Second, time.Minute, 30*time.Second, l)
}

func addClient(m *Manager, id, userID, clientID string) *Client {
	c := NewClient(id, userID, clientID, nil, m)
	m.registerClient(c)
	return c
}

func TestManager_NotifyLibraryChangedSkipsOrigin(t *testing.T) {
	m := newTestManager(5)
	laptop := addClient(m, "c1", "u1", "laptop")
	phone := addClient(m, "c2", "u1", "phone")
	other := addClient(m, "c3", "u2", "phone")

	syncedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := m.NotifyLibraryChanged("u1", "laptop", syncedAt); err != nil {
		t.Fatalf("NotifyLibraryChanged() error = %v", err)
	}

	if len(laptop.Send) != 0 {
		t.Error("originating client should not be notified")
	}
	if len(other.Send) != 0 {
		t.Error("other users should not be notified")
	}
	if len(phone.Send) != 1 {
		t.Fatalf("phone queued %d messages, want 1", len(phone.Send))
	}

	var msg Message
	if err := json.Unmarshal(<-phone.Send, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != TypeLibraryChanged {
		t.Errorf("Type = %s, want %s", msg.Type, TypeLibraryChanged)
	}

	var payload LibraryChangedPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.ClientID != "laptop" || !payload.SyncedAt.Equal(syncedAt) {
		t.Errorf("payload = %+v", payload)
	}
}

func TestManager_MaxConnectionsPerUser(t *testing.T) {
	m := newTestManager(1)
	addClient(m, "c1", "u1", "a")
	rejected := addClient(m, "c2", "u1", "b")

	if got := m.GetUserConnections("u1"); got != 1 {
		t.Errorf("GetUserConnections() = %d, want 1", got)
	}
	if _, ok := <-rejected.Send; ok {
		t.Error("rejected client's send channel should be closed")
	}
}

func TestManager_Unregister(t *testing.T) {
	m := newTestManager(2)
	c := addClient(m, "c1", "u1", "a")
	m.unregisterClient(c)

	if got := m.GetUserConnections("u1"); got != 0 {
		t.Errorf("GetUserConnections() = %d, want 0", got)
	}
	// a second unregister must not close the channel twice
	m.unregisterClient(c)
}
