package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/es0612/health-insight-go/internal/cache"
)

// InsightCacheAdmin defines the cache operations exposed to operators.
type InsightCacheAdmin interface {
	GetStats() cache.InsightCacheStats
	Clear(ctx context.Context) error
	ClearUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// AdminHandler handles cache monitoring and maintenance endpoints.
type AdminHandler struct {
	cache  InsightCacheAdmin
	logger logrus.FieldLogger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(insightCache InsightCacheAdmin, logger logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{
		cache:  insightCache,
		logger: logger,
	}
}

// GetCacheStats returns hit/miss counters for the insight cache.
func (h *AdminHandler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.cache.GetStats(),
	})
}

// ClearCache drops every cached insight.
func (h *AdminHandler) ClearCache(c *gin.Context) {
	if err := h.cache.Clear(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Failed to clear insight cache")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to clear cache",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Insight cache cleared successfully",
	})
}

// ClearUserCache drops one user's cached insights, for support work after a
// bulk data import or correction.
func (h *AdminHandler) ClearUserCache(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid user ID",
		})
		return
	}

	deleted, err := h.cache.ClearUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to clear user insight cache")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to clear cache",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User insight cache cleared successfully",
		"deleted": deleted,
	})
}
