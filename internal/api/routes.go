package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/es0612/health-insight-go/internal/api/handlers"
	"github.com/es0612/health-insight-go/internal/cache"
	"github.com/es0612/health-insight-go/internal/database"
	"github.com/es0612/health-insight-go/internal/middleware"
	"github.com/es0612/health-insight-go/internal/services"
)

// SetupRoutes configures all HTTP routes. Handlers get their dependencies
// injected here so the router stays the single place that knows the URL
// layout.
func SetupRoutes(
	router *gin.Engine,
	db *database.PostgresDB,
	redisClient *database.RedisClient,
	insights *services.InsightService,
	summaries *services.SummaryService,
	notifier *services.AlertNotifier,
	repo *database.HealthRecordRepository,
	insightCache *cache.RedisInsightCache,
	authMiddleware *middleware.AuthMiddleware,
	adminMiddleware *middleware.AdminMiddleware,
	logger logrus.FieldLogger,
) {
	// Assign through locals so a nil *PostgresDB never becomes a non-nil
	// interface inside the handler.
	var dbChecker handlers.DatabaseHealthChecker
	if db != nil {
		dbChecker = db
	}
	var redisChecker handlers.RedisHealthChecker
	if redisClient != nil {
		redisChecker = redisClient
	}
	healthHandler := handlers.NewHealthHandler(dbChecker, redisChecker)

	// Health check endpoints with telemetry
	healthGroup := router.Group("/")
	healthGroup.Use(middleware.HealthCheckTelemetryMiddleware())
	{
		healthGroup.GET("/health", healthHandler.HealthCheck)
		healthGroup.HEAD("/health", healthHandler.HealthCheck)
		healthGroup.GET("/ready", healthHandler.ReadinessCheck)
		healthGroup.GET("/live", healthHandler.LivenessCheck)
	}

	var invalidator handlers.CacheInvalidator
	if insightCache != nil {
		invalidator = insightCache
	}

	insightHandler := handlers.NewInsightHandler(insights, summaries, notifier, logger)
	recordsHandler := handlers.NewRecordsHandler(repo, invalidator, logger)

	// API v1 routes with telemetry
	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelemetryMiddleware(), middleware.SpanEnrichmentMiddleware())
	{
		// Analysis routes
		insightGroup := v1.Group("/insights")
		insightGroup.Use(authMiddleware.RequireAuth())
		{
			insightGroup.GET("/correlation", insightHandler.GetCorrelation)
			insightGroup.GET("/correlations", insightHandler.GetCorrelationMatrix)
			insightGroup.GET("/lag", insightHandler.GetLaggedCorrelation)
			insightGroup.GET("/patterns", insightHandler.GetPatterns)
			insightGroup.GET("/anomalies", insightHandler.GetAnomalies)
			insightGroup.GET("/summary", insightHandler.GetSummary)
		}

		// Health record management
		records := v1.Group("/records")
		records.Use(authMiddleware.RequireAuth())
		{
			records.POST("", recordsHandler.CreateRecord)
			records.GET("", recordsHandler.ListRecords)
			records.DELETE("/:id", recordsHandler.DeleteRecord)
		}

		// Admin endpoints (require admin authentication)
		admin := v1.Group("/admin")
		admin.Use(adminMiddleware.RequireAdminAuth())
		{
			if insightCache != nil {
				adminHandler := handlers.NewAdminHandler(insightCache, logger)
				cacheGroup := admin.Group("/cache")
				{
					cacheGroup.GET("/stats", adminHandler.GetCacheStats)
					cacheGroup.POST("/clear", adminHandler.ClearCache)
					cacheGroup.DELETE("/users/:id", adminHandler.ClearUserCache)
				}
			} else {
				logger.Warn("Insight cache not available, skipping admin cache routes")
			}
		}
	}
}
