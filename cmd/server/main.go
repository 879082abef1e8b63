// backend-go/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/aurafarma/backend-go/internal/api"
	"github.com/aurafarma/backend-go/internal/cache"
	"github.com/aurafarma/backend-go/internal/config"
	"github.com/aurafarma/backend-go/internal/repository"
	"github.com/aurafarma/backend-go/internal/repository/postgres"
	"github.com/aurafarma/backend-go/internal/service"
	"github.com/aurafarma/backend-go/internal/storage"
	"github.com/aurafarma/backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Setup(cfg.Server.Mode, os.Getenv("LOG_LEVEL"))
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Initialize database. The server still works without one: runs then
	// live only in memory (and Redis, when enabled).
	var snapshotRepo repository.SnapshotRepository
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable, running without persistence")
	} else {
		defer db.Close()
		repo := postgres.NewSnapshotRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare snapshot schema")
		}
		snapshotRepo = repo
	}

	// Initialize session cache (noop when disabled)
	sessionCache, err := cache.NewSessionCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, session caching disabled")
		sessionCache = cache.NewNoopSessionCache()
	}

	// Initialize object storage for report archival
	var objectStore storage.ObjectStorage
	if cfg.Storage.Enabled {
		store, err := storage.NewMinioClient(ctx, cfg.Storage)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize object storage")
		}
		objectStore = store
	}

	// Initialize services
	analysisService := service.NewAnalysisService(snapshotRepo, sessionCache, objectStore, cfg)

	// Initialize HTTP server
	router := api.NewRouter(api.RouterConfig{
		AnalysisService: analysisService,
		UploadDir:       cfg.App.UploadDir,
		ObjectStore:     objectStore,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
