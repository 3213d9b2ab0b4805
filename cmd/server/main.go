package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperlib-sync-server/internal/blob"
	"paperlib-sync-server/internal/config"
	"paperlib-sync-server/internal/database"
	"paperlib-sync-server/internal/handler"
	"paperlib-sync-server/internal/repository"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/internal/websocket"
	"paperlib-sync-server/pkg/logger"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(logger.Options{
		Env:        cfg.Server.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	dbOpts := database.DefaultOptions(cfg.Database.Path)
	dbOpts.BusyTimeout = cfg.Database.BusyTimeout
	db, err := database.Open(dbOpts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	store := repository.NewStore(db)

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
		log.WithField("component", "websocket"),
	)

	opts := service.SyncOptions{
		MaxBatchItems: cfg.Sync.MaxBatchItems,
		Notifier:      wsManager,
	}

	if cfg.Storage.Bucket != "" {
		pdfs, err := blob.NewPDFStore(context.Background(), cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to configure PDF storage: %v", err)
		}
		opts.PDFs = pdfs
		log.WithField("bucket", cfg.Storage.Bucket).Info("PDF size lookups enabled")
	}

	if cfg.Audit.CouchDBURL != "" {
		sink, err := openEventMirror(context.Background(), cfg.Audit)
		if err != nil {
			log.Fatalf("Failed to connect to CouchDB: %v", err)
		}
		opts.Events = sink
		log.WithField("database", cfg.Audit.Database).Info("Sync event mirror enabled")
	}

	syncService := service.NewSyncService(store, opts, log.WithField("component", "sync"))
	paperService := service.NewPaperService(syncService)

	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(syncService, log.WithField("component", "websocket")))
	go wsManager.Run()

	r := newRouter(cfg, syncService, paperService, wsManager, log)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":     addr,
			"env":      cfg.Server.Env,
			"database": cfg.Database.Path,
		}).Info("Starting paper library sync server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}

func openEventMirror(ctx context.Context, cfg config.AuditConfig) (repository.EventSink, error) {
	client, err := kivik.New("couch", cfg.CouchDBURL)
	if err != nil {
		return nil, err
	}

	exists, err := client.DBExists(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return repository.NewCouchEventRepository(client, cfg.Database), nil
}
