// Package main provides the API server entry point for the insights engine.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insights-engine/internal/adapter"
	"github.com/insights-engine/internal/api"
	"github.com/insights-engine/internal/config"
	"github.com/insights-engine/internal/credential"
	"github.com/insights-engine/internal/logging"
	"github.com/insights-engine/internal/service"
	"github.com/insights-engine/internal/storage"
)

func main() {
	log.Println("Insights Engine API Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	resolver, err := credential.NewResolver(cfg.Crypto.CredentialSecret)
	if err != nil {
		logger.WithError(err).Fatal("Credential secret not usable")
	}

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	accountRepo := storage.NewAccountRepository(postgres)
	profileRepo := storage.NewProfileSnapshotRepository(postgres)
	dailyRepo := storage.NewDailyInsightRepository(postgres)
	postRepo := storage.NewPostCacheRepository(postgres)
	metadataRepo := storage.NewSyncMetadataRepository(postgres)

	// Initialize services
	graphClient := adapter.NewGraphClient(&cfg.Graph)
	sanityFilter := service.NewSanityFilter(cfg.Sanity.Ceilings)
	syncService := service.NewSyncService(
		graphClient,
		resolver,
		sanityFilter,
		profileRepo,
		dailyRepo,
		postRepo,
		metadataRepo,
		&cfg.Sync,
	)
	comparisonService := service.NewComparisonService(dailyRepo)
	freshnessPolicy := service.NewFreshnessPolicy(cfg.Cache.TTL)
	responseCache := storage.NewCacheService(redis, cfg.Cache.ResponseTTL)
	insightsService := service.NewInsightsService(
		accountRepo,
		profileRepo,
		postRepo,
		dailyRepo,
		syncService,
		comparisonService,
		freshnessPolicy,
		responseCache,
	)

	// Initialize the API server
	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			ClientRPS:       cfg.Server.ClientRPS,
		},
		insightsService,
		syncService,
		accountRepo,
		metadataRepo,
		postRepo,
		resolver,
	)

	// Start the server
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Fatal("Server failed")
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}
