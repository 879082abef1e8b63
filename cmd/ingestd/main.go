// ingestd watches a shared Google Drive folder for SISMED consumption
// exports and feeds them into the analysis engine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/aurafarma/backend-go/internal/cache"
	"github.com/aurafarma/backend-go/internal/config"
	"github.com/aurafarma/backend-go/internal/drive"
	"github.com/aurafarma/backend-go/internal/repository"
	"github.com/aurafarma/backend-go/internal/repository/postgres"
	"github.com/aurafarma/backend-go/internal/service"
	"github.com/aurafarma/backend-go/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Server.Mode, os.Getenv("LOG_LEVEL"))

	if cfg.Drive.CredentialsFile == "" {
		log.Fatal().Msg("DRIVE_CREDENTIALS_FILE is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Google Drive client
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize drive client")
	}

	// Runs synced from Drive are persisted like API runs when a
	// database is reachable.
	var snapshotRepo repository.SnapshotRepository
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable, synced runs will not be persisted")
	} else {
		defer db.Close()
		repo := postgres.NewSnapshotRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare snapshot schema")
		}
		snapshotRepo = repo
	}

	analysisService := service.NewAnalysisService(snapshotRepo, cache.NewNoopSessionCache(), nil, cfg)

	downloadDir := filepath.Join(cfg.App.DataDir, "drive")
	syncService := drive.NewSyncService(driveService, analysisService, downloadDir)

	// Register routes
	r := mux.NewRouter()
	driveHandler := drive.NewHandler(driveService, syncService)
	driveHandler.RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Background folder watcher, when a folder is configured
	if cfg.Drive.FolderID != "" {
		watcher := drive.NewWatcher(syncService, cfg.Drive.FolderID, time.Duration(cfg.Drive.PollSeconds)*time.Second)
		go watcher.Run(ctx)
	}

	port := os.Getenv("INGESTD_PORT")
	if port == "" {
		port = "8081"
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: r,
	}

	go func() {
		log.Info().Str("port", port).Msg("ingestd starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ingestd failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("ingestd forced to shutdown")
	}
	log.Info().Msg("ingestd exiting")
}
