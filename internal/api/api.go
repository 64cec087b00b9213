// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/inventory-advisor/internal/api/handlers"
	"github.com/andresuchdata/inventory-advisor/internal/api/middleware"
	"github.com/andresuchdata/inventory-advisor/internal/metrics"
	"github.com/andresuchdata/inventory-advisor/internal/service"
)

type Services struct {
	PredictionService *service.PredictionService
	Metrics           *metrics.Recorder
}

type Options struct {
	AllowedOrigins      []string
	MaxUploadMB         int
	DefaultLeadTimeDays int
}

func NewRouter(services *Services, opts Options) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	if services != nil && services.Metrics != nil {
		router.Use(services.Metrics.Middleware())
	}
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if services != nil && services.Metrics != nil {
		router.GET("/metrics", gin.WrapH(services.Metrics.Handler()))
	}

	apiGroup := router.Group("/api/v1")

	if services != nil && services.PredictionService != nil {
		predictionHandler := handlers.NewPredictionHandler(services.PredictionService, handlers.PredictionOptions{
			MaxUploadBytes:      int64(opts.MaxUploadMB) << 20,
			DefaultLeadTimeDays: opts.DefaultLeadTimeDays,
		})
		apiGroup.POST("/predict", predictionHandler.Predict)

		predictionsGroup := apiGroup.Group("/predictions")
		{
			predictionsGroup.GET("", predictionHandler.ListRuns)
			predictionsGroup.GET("/:id", predictionHandler.GetRun)
			predictionsGroup.DELETE("/cache", predictionHandler.FlushCache)
		}
	}

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	return corsConfig
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
