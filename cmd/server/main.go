// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/inventory-advisor/internal/advisor"
	"github.com/andresuchdata/inventory-advisor/internal/api"
	"github.com/andresuchdata/inventory-advisor/internal/cache"
	"github.com/andresuchdata/inventory-advisor/internal/config"
	"github.com/andresuchdata/inventory-advisor/internal/metrics"
	"github.com/andresuchdata/inventory-advisor/internal/repository"
	"github.com/andresuchdata/inventory-advisor/internal/repository/postgres"
	"github.com/andresuchdata/inventory-advisor/internal/service"
	"github.com/andresuchdata/inventory-advisor/internal/storage"
	"github.com/andresuchdata/inventory-advisor/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetOutput(os.Stderr, cfg.Server.LogFormat)
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Prediction history is optional
	var repo repository.PredictionRepository
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		repo = postgres.NewPredictionRepository(db)
	}

	predictionCache, err := cache.NewPredictionCache(ctx, cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Prediction cache unavailable, continuing without it")
		predictionCache = cache.NewNoopPredictionCache()
	}

	var archive storage.ObjectStorage
	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
		}
		if err := client.EnsureBucket(ctx); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to prepare archive bucket")
		}
		archive = client
	}

	recorder := metrics.New()

	// Initialize services
	predictor := advisor.NewPredictor(advisor.Options{
		DefaultLeadTimeDays: cfg.Advisor.DefaultLeadTimeDays,
		Workers:             cfg.Advisor.Workers,
	})
	predictionService := service.NewPredictionService(predictor, repo, predictionCache, archive, recorder)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		PredictionService: predictionService,
		Metrics:           recorder,
	}, api.Options{
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		MaxUploadMB:         cfg.Server.MaxUploadMB,
		DefaultLeadTimeDays: cfg.Advisor.DefaultLeadTimeDays,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Bool("history", repo != nil).
			Bool("cache", cfg.Cache.Enabled).
			Bool("archive", archive != nil).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
