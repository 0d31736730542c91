package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/es0612/health-insight-go/internal/database"
	"github.com/es0612/health-insight-go/internal/models"
)

// RecordRepository is the persistence surface the records endpoints need.
type RecordRepository interface {
	InsertRecord(ctx context.Context, userID uuid.UUID, req models.HealthRecordRequest) (*models.HealthRecord, error)
	GetRecordsByKind(ctx context.Context, userID uuid.UUID, kind models.MetricKind, from, to time.Time) ([]models.HealthRecord, error)
	DeleteRecord(ctx context.Context, userID, recordID uuid.UUID) error
}

// CacheInvalidator drops a user's cached analyses when their data changes.
type CacheInvalidator interface {
	ClearUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// RecordsHandler serves the health record CRUD endpoints.
type RecordsHandler struct {
	repo   RecordRepository
	cache  CacheInvalidator
	logger logrus.FieldLogger
}

type RecordsResponse struct {
	Records   []models.HealthRecord `json:"records"`
	Count     int                   `json:"count"`
	Timestamp time.Time             `json:"timestamp"`
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(repo RecordRepository, cache CacheInvalidator, logger logrus.FieldLogger) *RecordsHandler {
	return &RecordsHandler{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// CreateRecord stores a new measurement for the authenticated user.
func (h *RecordsHandler) CreateRecord(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.HealthRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if !req.Kind.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metric kind: " + string(req.Kind)})
		return
	}
	if req.Source != "" && !req.Source.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data source: " + string(req.Source)})
		return
	}

	record, err := h.repo.InsertRecord(c.Request.Context(), userID, req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to insert health record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store record"})
		return
	}

	h.invalidateInsights(c.Request.Context(), userID)

	c.JSON(http.StatusCreated, record)
}

// ListRecords returns the authenticated user's measurements of one kind over
// the requested number of days.
func (h *RecordsHandler) ListRecords(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	kind, ok := queryMetricKind(c, "kind")
	if !ok {
		return
	}
	days, ok := queryDays(c)
	if !ok {
		return
	}
	if days == 0 {
		days = 30
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	records, err := h.repo.GetRecordsByKind(c.Request.Context(), userID, kind, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list health records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load records"})
		return
	}

	c.JSON(http.StatusOK, RecordsResponse{
		Records:   records,
		Count:     len(records),
		Timestamp: time.Now().UTC(),
	})
}

// DeleteRecord removes one of the authenticated user's measurements.
func (h *RecordsHandler) DeleteRecord(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record ID"})
		return
	}

	if err := h.repo.DeleteRecord(c.Request.Context(), userID, recordID); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to delete health record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete record"})
		return
	}

	h.invalidateInsights(c.Request.Context(), userID)

	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}

// invalidateInsights drops cached analyses after a data change. Failures only
// log, stale entries age out through the cache TTL anyway.
func (h *RecordsHandler) invalidateInsights(ctx context.Context, userID uuid.UUID) {
	if h.cache == nil {
		return
	}
	if _, err := h.cache.ClearUser(ctx, userID); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate insight cache")
	}
}
