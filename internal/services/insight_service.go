package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/es0612/health-insight-go/internal/config"
	"github.com/es0612/health-insight-go/internal/insight"
	"github.com/es0612/health-insight-go/internal/models"
	"github.com/es0612/health-insight-go/internal/telemetry"
)

const (
	defaultAnalysisDays      = 90
	defaultAnomalyWindowDays = 7
)

// RecordStore provides the health records an analysis reads.
type RecordStore interface {
	GetRecordsByKind(ctx context.Context, userID uuid.UUID, kind models.MetricKind, from, to time.Time) ([]models.HealthRecord, error)
	GetRecordsByKinds(ctx context.Context, userID uuid.UUID, kinds []models.MetricKind, from, to time.Time) ([]models.HealthRecord, error)
}

// InsightCache stores computed results so repeated requests skip the
// analysis. A nil cache disables caching.
type InsightCache interface {
	Key(userID uuid.UUID, parts ...string) string
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, payload interface{})
}

// InsightService orchestrates record loading, analysis and result caching
// for one user's health data.
type InsightService struct {
	store        RecordStore
	cache        InsightCache
	correlations *insight.CorrelationAnalyzer
	lags         *insight.LagAnalyzer
	patterns     *insight.PatternRecognizer
	anomalies    *insight.AnomalyDetector
	tracer       *telemetry.InsightTracer
	config       config.InsightConfig
	logger       logrus.FieldLogger
}

// NewInsightService creates a new insight service.
func NewInsightService(store RecordStore, insightCache InsightCache, cfg config.InsightConfig, logger logrus.FieldLogger) *InsightService {
	return &InsightService{
		store:        store,
		cache:        insightCache,
		correlations: insight.NewCorrelationAnalyzer(logger),
		lags:         insight.NewLagAnalyzer(logger),
		patterns:     insight.NewPatternRecognizer(logger),
		anomalies:    insight.NewAnomalyDetector(logger),
		tracer:       telemetry.NewInsightTracer(),
		config:       cfg,
		logger:       logger,
	}
}

// AnalyzeCorrelation correlates two metric series over the last days of
// records, aligned on the given window.
func (s *InsightService) AnalyzeCorrelation(ctx context.Context, userID uuid.UUID, primary, secondary models.MetricKind, window models.TimeWindow, days int) (*models.CorrelationResult, error) {
	if !primary.IsValid() {
		return nil, fmt.Errorf("invalid metric kind: %s", primary)
	}
	if !secondary.IsValid() {
		return nil, fmt.Errorf("invalid metric kind: %s", secondary)
	}
	window = s.normalizeWindow(window)
	days = normalizeDays(days, defaultAnalysisDays)

	ctx, span := s.tracer.TraceCorrelationAnalysis(ctx, primary, secondary, window)
	defer span.End()

	var key string
	if s.cache != nil {
		key = s.cache.Key(userID, "correlation", string(primary), string(secondary), string(window), strconv.Itoa(days))
		var cached models.CorrelationResult
		if s.cache.Get(ctx, key, &cached) {
			s.logger.WithField("key", key).Debug("Serving correlation from cache")
			return &cached, nil
		}
	}

	from, to := analysisRange(days)
	primaryRecords, err := s.store.GetRecordsByKind(ctx, userID, primary, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load %s records: %w", primary, err)
	}
	secondaryRecords, err := s.store.GetRecordsByKind(ctx, userID, secondary, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load %s records: %w", secondary, err)
	}

	result, err := s.correlations.AnalyzeCorrelations(ctx, primaryRecords, secondaryRecords, window)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.tracer.RecordCorrelationResult(span, *result)
	if s.cache != nil {
		s.cache.Set(ctx, key, result)
	}

	return result, nil
}

// AnalyzeCorrelationMatrix correlates every pair of the given metric kinds.
// An empty kinds list analyzes all known kinds.
func (s *InsightService) AnalyzeCorrelationMatrix(ctx context.Context, userID uuid.UUID, kinds []models.MetricKind, window models.TimeWindow, days int) ([]models.CorrelationResult, error) {
	if len(kinds) == 0 {
		kinds = allMetricKinds()
	}
	for _, kind := range kinds {
		if !kind.IsValid() {
			return nil, fmt.Errorf("invalid metric kind: %s", kind)
		}
	}
	window = s.normalizeWindow(window)
	days = normalizeDays(days, defaultAnalysisDays)

	ctx, span := s.tracer.TraceCorrelationMatrix(ctx, kinds, window)
	defer span.End()

	var key string
	if s.cache != nil {
		key = s.cache.Key(userID, "matrix", kindsKey(kinds), string(window), strconv.Itoa(days))
		var cached []models.CorrelationResult
		if s.cache.Get(ctx, key, &cached) {
			s.logger.WithField("key", key).Debug("Serving correlation matrix from cache")
			return cached, nil
		}
	}

	from, to := analysisRange(days)
	records, err := s.store.GetRecordsByKinds(ctx, userID, kinds, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	results, err := s.correlations.AnalyzeMultipleCorrelations(ctx, records, kinds, window)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.tracer.RecordCorrelationMatrix(span, results)
	if s.cache != nil {
		s.cache.Set(ctx, key, results)
	}

	return results, nil
}

// AnalyzeLaggedCorrelation sweeps lag offsets to find how many days changes
// in the leading metric precede changes in the lagging one.
func (s *InsightService) AnalyzeLaggedCorrelation(ctx context.Context, userID uuid.UUID, leading, lagging models.MetricKind, maxLagDays, days int) (*models.LaggedCorrelationResult, error) {
	if !leading.IsValid() {
		return nil, fmt.Errorf("invalid metric kind: %s", leading)
	}
	if !lagging.IsValid() {
		return nil, fmt.Errorf("invalid metric kind: %s", lagging)
	}
	if maxLagDays <= 0 {
		maxLagDays = s.config.MaxLagDays
	}
	days = normalizeDays(days, defaultAnalysisDays)

	ctx, span := s.tracer.TraceLagAnalysis(ctx, leading, lagging, maxLagDays)
	defer span.End()

	var key string
	if s.cache != nil {
		key = s.cache.Key(userID, "lag", string(leading), string(lagging), strconv.Itoa(maxLagDays), strconv.Itoa(days))
		var cached models.LaggedCorrelationResult
		if s.cache.Get(ctx, key, &cached) {
			s.logger.WithField("key", key).Debug("Serving lag analysis from cache")
			return &cached, nil
		}
	}

	from, to := analysisRange(days)
	leadingRecords, err := s.store.GetRecordsByKind(ctx, userID, leading, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load %s records: %w", leading, err)
	}
	laggingRecords, err := s.store.GetRecordsByKind(ctx, userID, lagging, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load %s records: %w", lagging, err)
	}

	result, err := s.lags.AnalyzeLaggedCorrelations(ctx, leadingRecords, laggingRecords, maxLagDays)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.tracer.RecordLagResult(span, *result)
	if s.cache != nil {
		s.cache.Set(ctx, key, result)
	}

	return result, nil
}

// RecognizePatterns detects temporal patterns in one metric series. An empty
// categories list runs every detector.
func (s *InsightService) RecognizePatterns(ctx context.Context, userID uuid.UUID, kind models.MetricKind, categories []models.PatternCategory, sensitivity models.Sensitivity, days int) ([]models.Pattern, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid metric kind: %s", kind)
	}
	if !sensitivity.IsValid() {
		sensitivity = s.config.Sensitivity()
	}
	days = normalizeDays(days, defaultAnalysisDays)

	ctx, span := s.tracer.TracePatternRecognition(ctx, kind, sensitivity)
	defer span.End()

	var key string
	if s.cache != nil {
		key = s.cache.Key(userID, "patterns", string(kind), string(sensitivity), categoriesKey(categories), strconv.Itoa(days))
		var cached []models.Pattern
		if s.cache.Get(ctx, key, &cached) {
			s.logger.WithField("key", key).Debug("Serving patterns from cache")
			return cached, nil
		}
	}

	from, to := analysisRange(days)
	records, err := s.store.GetRecordsByKind(ctx, userID, kind, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load %s records: %w", kind, err)
	}

	patterns := s.patterns.RecognizePatterns(records, categories, sensitivity)

	s.tracer.RecordPatterns(span, patterns)
	if s.cache != nil {
		s.cache.Set(ctx, key, patterns)
	}

	return patterns, nil
}

// DetectAnomalies flags readings in the recent candidate window that deviate
// from the user's baseline before it.
func (s *InsightService) DetectAnomalies(ctx context.Context, userID uuid.UUID, kind models.MetricKind, threshold float64, days int) ([]models.AnomalyRecord, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid metric kind: %s", kind)
	}
	if threshold <= 0 {
		threshold = s.config.AnomalyThreshold
	}
	days = normalizeDays(days, defaultAnomalyWindowDays)

	ctx, span := s.tracer.TraceAnomalyDetection(ctx, kind, threshold)
	defer span.End()

	var key string
	if s.cache != nil {
		key = s.cache.Key(userID, "anomalies", string(kind), fmt.Sprintf("%.2f", threshold), strconv.Itoa(days))
		var cached []models.AnomalyRecord
		if s.cache.Get(ctx, key, &cached) {
			s.logger.WithField("key", key).Debug("Serving anomalies from cache")
			return cached, nil
		}
	}

	now := time.Now().UTC()
	candidateFrom := now.AddDate(0, 0, -days)
	baselineFrom := candidateFrom.AddDate(0, 0, -s.config.BaselineDays)

	baseline, err := s.store.GetRecordsByKind(ctx, userID, kind, baselineFrom, candidateFrom)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load baseline records: %w", err)
	}
	candidates, err := s.store.GetRecordsByKind(ctx, userID, kind, candidateFrom, now)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load candidate records: %w", err)
	}

	anomalies, err := s.anomalies.DetectAnomalies(candidates, baseline, threshold)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.tracer.RecordAnomalies(span, anomalies)
	if s.cache != nil {
		s.cache.Set(ctx, key, anomalies)
	}

	return anomalies, nil
}

func (s *InsightService) normalizeWindow(window models.TimeWindow) models.TimeWindow {
	if !window.IsValid() {
		return s.config.Window()
	}
	return window
}

func normalizeDays(days, fallback int) int {
	if days <= 0 {
		return fallback
	}
	return days
}

func analysisRange(days int) (time.Time, time.Time) {
	to := time.Now().UTC()
	return to.AddDate(0, 0, -days), to
}

func allMetricKinds() []models.MetricKind {
	return []models.MetricKind{
		models.MetricWeight,
		models.MetricSteps,
		models.MetricHeartRate,
		models.MetricCalories,
		models.MetricSleepDuration,
		models.MetricBloodGlucose,
	}
}

func kindsKey(kinds []models.MetricKind) string {
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}

func categoriesKey(categories []models.PatternCategory) string {
	if len(categories) == 0 {
		return "all"
	}
	names := make([]string, len(categories))
	for i, category := range categories {
		names[i] = string(category)
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}
