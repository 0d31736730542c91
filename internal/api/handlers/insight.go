package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/es0612/health-insight-go/internal/insight"
	"github.com/es0612/health-insight-go/internal/middleware"
	"github.com/es0612/health-insight-go/internal/models"
	"github.com/es0612/health-insight-go/internal/services"
)

// InsightHandler serves the analysis endpoints.
type InsightHandler struct {
	insights  *services.InsightService
	summaries *services.SummaryService
	notifier  *services.AlertNotifier
	logger    logrus.FieldLogger
}

type CorrelationMatrixResponse struct {
	Results   []models.CorrelationResult `json:"results"`
	Count     int                        `json:"count"`
	Timestamp time.Time                  `json:"timestamp"`
}

type PatternsResponse struct {
	Patterns  []models.Pattern `json:"patterns"`
	Count     int              `json:"count"`
	Timestamp time.Time        `json:"timestamp"`
}

type AnomaliesResponse struct {
	Anomalies []models.AnomalyRecord `json:"anomalies"`
	Count     int                    `json:"count"`
	AlertSent bool                   `json:"alert_sent"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewInsightHandler creates a new insight handler.
func NewInsightHandler(insights *services.InsightService, summaries *services.SummaryService, notifier *services.AlertNotifier, logger logrus.FieldLogger) *InsightHandler {
	return &InsightHandler{
		insights:  insights,
		summaries: summaries,
		notifier:  notifier,
		logger:    logger,
	}
}

// GetCorrelation correlates two metrics for the authenticated user.
func (h *InsightHandler) GetCorrelation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	primary, ok := queryMetricKind(c, "primary")
	if !ok {
		return
	}
	secondary, ok := queryMetricKind(c, "secondary")
	if !ok {
		return
	}
	window, ok := queryWindow(c)
	if !ok {
		return
	}
	days, ok := queryDays(c)
	if !ok {
		return
	}

	result, err := h.insights.AnalyzeCorrelation(c.Request.Context(), userID, primary, secondary, window, days)
	if err != nil {
		h.respondAnalysisError(c, err, "correlation")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCorrelationMatrix correlates every pair of the requested metrics. Without
// a kinds parameter all known metrics are analyzed.
func (h *InsightHandler) GetCorrelationMatrix(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	kinds, ok := queryMetricKinds(c)
	if !ok {
		return
	}
	window, ok := queryWindow(c)
	if !ok {
		return
	}
	days, ok := queryDays(c)
	if !ok {
		return
	}

	results, err := h.insights.AnalyzeCorrelationMatrix(c.Request.Context(), userID, kinds, window, days)
	if err != nil {
		h.respondAnalysisError(c, err, "correlation matrix")
		return
	}

	c.JSON(http.StatusOK, CorrelationMatrixResponse{
		Results:   results,
		Count:     len(results),
		Timestamp: time.Now().UTC(),
	})
}

// GetLaggedCorrelation finds the lag at which the leading metric best
// predicts the lagging one.
func (h *InsightHandler) GetLaggedCorrelation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	leading, ok := queryMetricKind(c, "leading")
	if !ok {
		return
	}
	lagging, ok := queryMetricKind(c, "lagging")
	if !ok {
		return
	}
	maxLagDays, ok := queryNonNegativeInt(c, "max_lag_days")
	if !ok {
		return
	}
	days, ok := queryDays(c)
	if !ok {
		return
	}

	result, err := h.insights.AnalyzeLaggedCorrelation(c.Request.Context(), userID, leading, lagging, maxLagDays, days)
	if err != nil {
		h.respondAnalysisError(c, err, "lagged correlation")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPatterns classifies the recent shape of one metric series.
func (h *InsightHandler) GetPatterns(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	kind, ok := queryMetricKind(c, "kind")
	if !ok {
		return
	}
	categories, ok := queryCategories(c)
	if !ok {
		return
	}
	sensitivity, ok := querySensitivity(c)
	if !ok {
		return
	}
	days, ok := queryDays(c)
	if !ok {
		return
	}

	patterns, err := h.insights.RecognizePatterns(c.Request.Context(), userID, kind, categories, sensitivity, days)
	if err != nil {
		h.respondAnalysisError(c, err, "pattern recognition")
		return
	}

	c.JSON(http.StatusOK, PatternsResponse{
		Patterns:  patterns,
		Count:     len(patterns),
		Timestamp: time.Now().UTC(),
	})
}

// GetAnomalies flags unusual recent readings. With notify=true confirmed
// anomalies are also pushed through the alert notifier.
func (h *InsightHandler) GetAnomalies(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	kind, ok := queryMetricKind(c, "kind")
	if !ok {
		return
	}
	threshold, ok := queryThreshold(c)
	if !ok {
		return
	}
	days, ok := queryDays(c)
	if !ok {
		return
	}
	notify, err := strconv.ParseBool(c.DefaultQuery("notify", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notify must be a boolean"})
		return
	}

	anomalies, err := h.insights.DetectAnomalies(c.Request.Context(), userID, kind, threshold, days)
	if err != nil {
		h.respondAnalysisError(c, err, "anomaly detection")
		return
	}

	alertSent := false
	if notify && h.notifier != nil {
		sent, err := h.notifier.NotifyAnomalies(c.Request.Context(), kind, anomalies)
		if err != nil {
			// Detection succeeded, a failed alert does not fail the request.
			h.logger.WithError(err).Warn("Failed to send anomaly alert")
		}
		alertSent = sent
	}

	c.JSON(http.StatusOK, AnomaliesResponse{
		Anomalies: anomalies,
		Count:     len(anomalies),
		AlertSent: alertSent,
		Timestamp: time.Now().UTC(),
	})
}

// GetSummary returns descriptive statistics for one metric series.
func (h *InsightHandler) GetSummary(c *gin.Context) {
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

	summary, err := h.summaries.GetSummary(c.Request.Context(), userID, kind, days)
	if err != nil {
		h.respondAnalysisError(c, err, "summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// respondAnalysisError maps analysis failures onto HTTP statuses. Thin series
// are a client-side condition, everything else is a server fault.
func (h *InsightHandler) respondAnalysisError(c *gin.Context, err error, operation string) {
	if insight.IsInsufficientData(err) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	middleware.RecordError(c, err, operation+" failed")
	h.logger.WithError(err).WithField("operation", operation).Error("Analysis failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run analysis"})
}

// currentUserID reads the authenticated user from the context set by the auth
// middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user identity"})
		return uuid.Nil, false
	}
	return userID, true
}

func queryMetricKind(c *gin.Context, name string) (models.MetricKind, bool) {
	kind := models.MetricKind(c.Query(name))
	if !kind.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing " + name + " metric kind"})
		return "", false
	}
	return kind, true
}

// queryMetricKinds parses the optional comma separated kinds parameter. An
// absent parameter means all kinds.
func queryMetricKinds(c *gin.Context) ([]models.MetricKind, bool) {
	raw := c.Query("kinds")
	if raw == "" {
		return nil, true
	}

	var kinds []models.MetricKind
	for _, part := range strings.Split(raw, ",") {
		kind := models.MetricKind(strings.TrimSpace(part))
		if !kind.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metric kind: " + string(kind)})
			return nil, false
		}
		kinds = append(kinds, kind)
	}
	return kinds, true
}

// queryWindow parses the optional window parameter, leaving the service
// default in place when absent.
func queryWindow(c *gin.Context) (models.TimeWindow, bool) {
	raw := c.Query("window")
	if raw == "" {
		return "", true
	}
	window := models.TimeWindow(raw)
	if !window.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window: " + raw})
		return "", false
	}
	return window, true
}

func queryCategories(c *gin.Context) ([]models.PatternCategory, bool) {
	raw := c.Query("categories")
	if raw == "" {
		return nil, true
	}

	var categories []models.PatternCategory
	for _, part := range strings.Split(raw, ",") {
		category := models.PatternCategory(strings.TrimSpace(part))
		if !category.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pattern category: " + string(category)})
			return nil, false
		}
		categories = append(categories, category)
	}
	return categories, true
}

func querySensitivity(c *gin.Context) (models.Sensitivity, bool) {
	raw := c.Query("sensitivity")
	if raw == "" {
		return "", true
	}
	sensitivity := models.Sensitivity(raw)
	if !sensitivity.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensitivity: " + raw})
		return "", false
	}
	return sensitivity, true
}

func queryDays(c *gin.Context) (int, bool) {
	return queryNonNegativeInt(c, "days")
}

func queryNonNegativeInt(c *gin.Context, name string) (int, bool) {
	value, err := strconv.Atoi(c.DefaultQuery(name, "0"))
	if err != nil || value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return value, true
}

func queryThreshold(c *gin.Context) (float64, bool) {
	value, err := strconv.ParseFloat(c.DefaultQuery("threshold", "0"), 64)
	if err != nil || value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a non-negative number"})
		return 0, false
	}
	return value, true
}
