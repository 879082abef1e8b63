// internal/api/api.go
package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/aurafarma/backend-go/internal/api/handlers"
	"github.com/aurafarma/backend-go/internal/api/middleware"
	"github.com/aurafarma/backend-go/internal/service"
	"github.com/aurafarma/backend-go/internal/storage"
)

type RouterConfig struct {
	AnalysisService *service.AnalysisService
	UploadDir       string
	ObjectStore     storage.ObjectStorage
	AllowedOrigins  []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(cfg.AllowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")

	if cfg.AnalysisService != nil {
		h := handlers.NewAnalysisHandler(cfg.AnalysisService, cfg.UploadDir, cfg.ObjectStore)
		analysisGroup := apiGroup.Group("/analysis")
		{
			analysisGroup.POST("", h.Analyze)
			analysisGroup.GET("/current", h.Current)
			analysisGroup.GET("/runs", h.Runs)
			analysisGroup.POST("/runs/:runID/load", h.LoadRun)
			analysisGroup.POST("/load-latest", h.LoadLatest)
			analysisGroup.POST("/save", h.Save)

			analysisGroup.GET("/items", h.Items)
			analysisGroup.GET("/items/:itemID", h.Item)
			analysisGroup.POST("/items/:itemID/focus", h.Focus)
			analysisGroup.POST("/items/:itemID/mode", h.SwitchMode)
			analysisGroup.POST("/items/:itemID/quantity", h.SetQuantity)
			analysisGroup.POST("/items/:itemID/validate", h.Validate)
			analysisGroup.POST("/items/:itemID/unlock", h.Unlock)

			analysisGroup.GET("/review", h.Review)
			analysisGroup.GET("/report", h.Report)

			analysisGroup.GET("/additional", h.AdditionalItems)
			analysisGroup.POST("/additional", h.AddAdditionalItem)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
