package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/es0612/health-insight-go/internal/api"
	"github.com/es0612/health-insight-go/internal/cache"
	"github.com/es0612/health-insight-go/internal/config"
	"github.com/es0612/health-insight-go/internal/database"
	"github.com/es0612/health-insight-go/internal/logging"
	"github.com/es0612/health-insight-go/internal/middleware"
	"github.com/es0612/health-insight-go/internal/services"
	"github.com/es0612/health-insight-go/internal/telemetry"
)

// main delegates to run so deferred cleanup fires before the exit code is
// decided.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env for local development, real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	// Initialize tracing
	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Environment: cfg.Environment,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to shut down telemetry")
		}
	}()

	// Ship logs to the same collector as traces when one is configured
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint != "" {
		otlpHook, err := logging.NewOTLPHook(ctx, logging.OTLPHookConfig{
			Endpoint:       cfg.Telemetry.Endpoint,
			Insecure:       cfg.Telemetry.Insecure,
			ServiceName:    telemetry.ServiceName,
			ServiceVersion: telemetry.ServiceVersion,
			Environment:    cfg.Environment,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize OTLP log export - continuing with local logs")
		} else {
			logger.AddHook(otlpHook)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := otlpHook.Shutdown(shutdownCtx); err != nil {
					logger.WithError(err).Warn("Failed to shut down OTLP log export")
				}
			}()
		}
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize Redis. Analyses run uncached when Redis is unavailable, so a
	// connection failure degrades the service instead of blocking startup.
	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Redis - continuing without cache")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var insightCache *cache.RedisInsightCache
	if redisClient != nil {
		insightCache = cache.NewRedisInsightCache(redisClient.Client, cfg.Insight.CacheExpiry(), logger)
	}
	var serviceCache services.InsightCache
	if insightCache != nil {
		serviceCache = insightCache
	}

	// Initialize repository and services
	repo := database.NewHealthRecordRepository(db.Pool)
	insightService := services.NewInsightService(repo, serviceCache, cfg.Insight, logger)
	summaryService := services.NewSummaryService(repo, serviceCache, logger)

	notifier, err := services.NewAlertNotifier(cfg.Telegram, cfg.Insight.MinSeverity(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize alert notifier: %w", err)
	}
	if !notifier.Enabled() {
		logger.Info("Telegram alerts disabled, no bot token configured")
	}

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.JWTSecret)
	adminMiddleware := middleware.NewAdminMiddleware(cfg.Security)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	api.SetupRoutes(router, db, redisClient, insightService, summaryService, notifier, repo, insightCache, authMiddleware, adminMiddleware, logger)

	// Create HTTP server with security timeouts
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}
