package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paperlib-sync-server/internal/config"
	"paperlib-sync-server/internal/database"
	"paperlib-sync-server/internal/repository"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/internal/websocket"
	"paperlib-sync-server/pkg/jwt"
	"paperlib-sync-server/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	db, err := database.Open(database.DefaultOptions(filepath.Join(t.TempDir(), "library.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		JWT:  config.JWTConfig{Secret: "router-secret"},
		Sync: config.SyncConfig{MaxBatchItems: 10, MaxBodyBytes: 1 << 20},
		CORS: config.CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET,POST", AllowedHeaders: "Content-Type"},
	}

	log := logger.Discard()
	wsManager := websocket.NewManager(2, time.Second, time.Second, time.Second, log)
	syncService := service.NewSyncService(repository.NewStore(db), service.SyncOptions{Notifier: wsManager}, log)
	r := newRouter(cfg, syncService, service.NewPaperService(syncService), wsManager, log)

	token, err := jwt.GenerateToken("u1", time.Hour, cfg.JWT.Secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		auth   bool
		body   string
		want   int
	}{
		{"health", "GET", "/health", false, "", http.StatusOK},
		{"sync without token", "POST", "/api/v1/sync", false, `{"clientId": "c"}`, http.StatusUnauthorized},
		{"sync with token", "POST", "/api/v1/sync", true, `{"clientId": "c"}`, http.StatusOK},
		{"status with token", "GET", "/api/v1/sync/status", true, "", http.StatusOK},
		{"papers with token", "GET", "/api/v1/papers", true, "", http.StatusOK},
		{"wrong method", "GET", "/api/v1/sync", true, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
