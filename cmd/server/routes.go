package main

import (
	"net/http"

	"paperlib-sync-server/internal/config"
	"paperlib-sync-server/internal/handler"
	"paperlib-sync-server/internal/middleware"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/internal/websocket"
	"paperlib-sync-server/pkg/response"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func newRouter(cfg *config.Config, syncService *service.SyncService, paperService *service.PaperService, wsManager *websocket.Manager, log logrus.FieldLogger) *mux.Router {
	syncHandler := handler.NewSyncHandler(syncService, cfg.Sync.MaxBodyBytes)
	paperHandler := handler.NewPaperHandler(paperService, cfg.Sync.MaxBodyBytes)
	libraryHandler := handler.NewLibraryHandler(syncService)
	wsHandler := handler.NewWebSocketHandler(
		wsManager,
		cfg.JWT.Secret,
		cfg.WebSocket.ReadBufferSize,
		cfg.WebSocket.WriteBufferSize,
		log.WithField("component", "websocket"),
	)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(log.WithField("component", "http")))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	api.HandleFunc("/sync", syncHandler.Sync).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/full", syncHandler.FullSync).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/import", syncHandler.Import).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/status", syncHandler.Status).Methods("GET", "OPTIONS")
	api.HandleFunc("/sync/events", syncHandler.Events).Methods("GET", "OPTIONS")

	api.HandleFunc("/library", libraryHandler.Wipe).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/papers", paperHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/papers", paperHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/papers/{id}", paperHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/papers/{id}", paperHandler.Update).Methods("PUT", "OPTIONS")
	api.HandleFunc("/papers/{id}", paperHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/papers/{id}/restore", paperHandler.Restore).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)
	r.HandleFunc("/health", healthHandler).Methods("GET")

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{
		"status":  "healthy",
		"service": "paperlib-sync-server",
	})
}
