package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/es0612/health-insight-go/internal/insight"
	"github.com/es0612/health-insight-go/internal/models"
)

const (
	smoothingPeriod = 7

	trendRising  = "rising"
	trendFalling = "falling"
	trendSteady  = "steady"

	// Relative change below this fraction counts as steady
	steadyTolerance = 0.02
)

// SummaryService produces smoothed overviews of single metric series.
type SummaryService struct {
	store  RecordStore
	cache  InsightCache
	logger logrus.FieldLogger
}

// NewSummaryService creates a new summary service.
func NewSummaryService(store RecordStore, insightCache InsightCache, logger logrus.FieldLogger) *SummaryService {
	return &SummaryService{
		store:  store,
		cache:  insightCache,
		logger: logger,
	}
}

// GetSummary summarizes one metric series over the last days of records,
// including moving averages when enough samples exist.
func (s *SummaryService) GetSummary(ctx context.Context, userID uuid.UUID, kind models.MetricKind, days int) (*models.SeriesSummary, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid metric kind: %s", kind)
	}
	days = normalizeDays(days, defaultAnalysisDays)

	var key string
	if s.cache != nil {
		key = s.cache.Key(userID, "summary", string(kind), strconv.Itoa(days))
		var cached models.SeriesSummary
		if s.cache.Get(ctx, key, &cached) {
			s.logger.WithField("key", key).Debug("Serving summary from cache")
			return &cached, nil
		}
	}

	from, to := analysisRange(days)
	records, err := s.store.GetRecordsByKind(ctx, userID, kind, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", kind, err)
	}
	if len(records) == 0 {
		return nil, insight.NewInsufficientDataErrorf("no %s records in the last %d days", kind, days)
	}

	values := make([]float64, len(records))
	for i, record := range records {
		values[i] = record.FloatValue()
	}

	summary := &models.SeriesSummary{
		Kind:        kind,
		SampleSize:  len(values),
		Latest:      values[len(values)-1],
		Mean:        meanOf(values),
		Change:      values[len(values)-1] - values[0],
		ChangeRate:  changeRate(values[0], values[len(values)-1]),
		GeneratedAt: time.Now().UTC(),
	}

	if len(values) >= smoothingPeriod {
		sma := trend.NewSmaWithPeriod[float64](smoothingPeriod)
		summary.SMA = helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))

		ema := trend.NewEmaWithPeriod[float64](smoothingPeriod)
		summary.EMA = helper.ChanToSlice(ema.Compute(helper.SliceToChan(values)))
	}

	summary.Trend = classifyTrend(summary)

	s.logger.WithFields(logrus.Fields{
		"kind":    kind,
		"samples": summary.SampleSize,
		"trend":   summary.Trend,
	}).Debug("Series summary computed")

	if s.cache != nil {
		s.cache.Set(ctx, key, summary)
	}

	return summary, nil
}

// classifyTrend labels the direction of the series. The smoothed series is
// preferred over raw values when available.
func classifyTrend(summary *models.SeriesSummary) string {
	series := summary.SMA
	if len(series) < 2 {
		if summary.SampleSize < 2 {
			return trendSteady
		}
		series = []float64{summary.Latest - summary.Change, summary.Latest}
	}

	first := series[0]
	last := series[len(series)-1]
	delta := last - first

	scale := math.Abs(first)
	if scale < 1e-10 {
		scale = 1
	}
	if math.Abs(delta)/scale < steadyTolerance {
		return trendSteady
	}
	if delta > 0 {
		return trendRising
	}
	return trendFalling
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func changeRate(first, last float64) float64 {
	if math.Abs(first) < 1e-10 {
		return 0
	}
	return (last - first) / math.Abs(first) * 100
}
