package insight

import (
	"context"
	"math"
	"time"

	"github.com/es0612/health-insight-go/internal/models"
	"github.com/sirupsen/logrus"
)

// LagAnalyzer finds delayed relationships between two metric series by
// sweeping a range of day offsets.
type LagAnalyzer struct {
	logger logrus.FieldLogger
}

// NewLagAnalyzer creates a new lag analyzer. A nil logger disables
// diagnostics.
func NewLagAnalyzer(logger logrus.FieldLogger) *LagAnalyzer {
	return &LagAnalyzer{
		logger: ensureLogger(logger),
	}
}

// AnalyzeLaggedCorrelations shifts the lagging series backward by each lag
// in 0..maxLagDays, realigns daily against the leading series, and records
// the correlation at every lag that still aligns. The best lag is the one
// with the largest absolute coefficient; on exact ties the lag with the
// larger aligned sample wins, and remaining ties keep the smallest lag.
// Lags that fail alignment contribute nothing. The sweep checks ctx before
// each lag.
func (a *LagAnalyzer) AnalyzeLaggedCorrelations(ctx context.Context, leading, lagging []models.HealthRecord, maxLagDays int) (*models.LaggedCorrelationResult, error) {
	if len(leading) == 0 && len(lagging) == 0 {
		return nil, NewInsufficientDataError("both input series are empty")
	}
	if maxLagDays < 0 {
		maxLagDays = 0
	}

	correlations := make([]models.LagCorrelation, 0, maxLagDays+1)
	for lag := 0; lag <= maxLagDays; lag++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		shifted := shiftRecords(lagging, -lag)
		points, err := AlignSeries(leading, shifted, models.WindowDaily)
		if err != nil {
			continue
		}

		x := make([]float64, len(points))
		y := make([]float64, len(points))
		for i, p := range points {
			x[i] = p.PrimaryValue
			y[i] = p.SecondaryValue
		}

		r := pearson(x, y)
		p := approximatePValue(r, len(points))
		correlations = append(correlations, models.LagCorrelation{
			LagDays:     lag,
			Coefficient: r,
			PValue:      p,
			Confidence:  lagConfidence(len(points), p),
			SampleSize:  len(points),
		})
	}

	result := &models.LaggedCorrelationResult{
		LeadingKind:  seriesKind(leading),
		LaggingKind:  seriesKind(lagging),
		Correlations: correlations,
		Pattern:      models.LagNoPattern,
		GeneratedAt:  time.Now(),
	}

	for i := range correlations {
		if result.BestLag == nil || betterLag(correlations[i], *result.BestLag) {
			result.BestLag = &correlations[i]
		}
	}
	if result.BestLag != nil {
		result.Pattern = classifyLagPattern(result.BestLag.LagDays)
	}

	a.logger.WithFields(logrus.Fields{
		"leading_kind": result.LeadingKind,
		"lagging_kind": result.LaggingKind,
		"max_lag_days": maxLagDays,
		"viable_lags":  len(correlations),
		"pattern":      result.Pattern,
	}).Debug("Lagged correlation analysis completed")

	return result, nil
}

// betterLag prefers the larger absolute coefficient. A perfectly linear
// series ties at every viable lag, so exact ties fall through to the larger
// aligned sample, which peaks at the true offset.
func betterLag(candidate, current models.LagCorrelation) bool {
	absCandidate := math.Abs(candidate.Coefficient)
	absCurrent := math.Abs(current.Coefficient)
	if absCandidate != absCurrent {
		return absCandidate > absCurrent
	}
	return candidate.SampleSize > current.SampleSize
}

// shiftRecords returns a copy of the records with timestamps moved by the
// given number of days.
func shiftRecords(records []models.HealthRecord, days int) []models.HealthRecord {
	shifted := make([]models.HealthRecord, len(records))
	for i, r := range records {
		r.RecordedAt = r.RecordedAt.AddDate(0, 0, days)
		shifted[i] = r
	}
	return shifted
}

func seriesKind(records []models.HealthRecord) models.MetricKind {
	if len(records) == 0 {
		return ""
	}
	return records[0].Kind
}

// lagConfidence blends sample size with the significance of the coefficient.
// Thirty daily points are treated as a full-confidence sample.
func lagConfidence(sampleSize int, pValue float64) float64 {
	sizeScore := math.Min(1, float64(sampleSize)/30)
	return sizeScore * significanceWeight(pValue)
}

func significanceWeight(pValue float64) float64 {
	switch {
	case pValue <= 0.01:
		return 0.99
	case pValue <= 0.05:
		return 0.95
	case pValue <= 0.1:
		return 0.9
	default:
		return 0.5
	}
}

func classifyLagPattern(lagDays int) models.LagPattern {
	switch {
	case lagDays == 0:
		return models.LagImmediate
	case lagDays <= 3:
		return models.LagShortDelay
	case lagDays <= 7:
		return models.LagMediumDelay
	default:
		return models.LagLongDelay
	}
}
