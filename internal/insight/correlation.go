package insight

import (
	"context"
	"io"
	"math"
	"sort"
	"time"

	"github.com/es0612/health-insight-go/internal/models"
	"github.com/sirupsen/logrus"
)

// confidenceLevel is the only interval level currently produced. The critical
// value below is the matching two-sided normal quantile.
const (
	confidenceLevel = 0.95
	criticalValue   = 1.96
)

// CorrelationAnalyzer computes pairwise correlation analyses over aligned
// metric series.
type CorrelationAnalyzer struct {
	logger logrus.FieldLogger
}

// NewCorrelationAnalyzer creates a new correlation analyzer. A nil logger
// disables diagnostics.
func NewCorrelationAnalyzer(logger logrus.FieldLogger) *CorrelationAnalyzer {
	return &CorrelationAnalyzer{
		logger: ensureLogger(logger),
	}
}

func ensureLogger(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger != nil {
		return logger
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}

// AnalyzeCorrelations aligns the two series at the given window and computes
// the Pearson coefficient, an approximate p-value, a 95% Fisher-transform
// confidence interval, and the derived classification tiers.
func (a *CorrelationAnalyzer) AnalyzeCorrelations(ctx context.Context, primary, secondary []models.HealthRecord, window models.TimeWindow) (*models.CorrelationResult, error) {
	if len(primary) == 0 || len(secondary) == 0 {
		return nil, NewInsufficientDataError("empty input series")
	}
	if len(primary) < 2 || len(secondary) < 2 {
		return nil, NewInsufficientDataErrorf("need at least 2 points per series, got %d and %d", len(primary), len(secondary))
	}

	points, err := AlignSeries(primary, secondary, window)
	if err != nil {
		return nil, err
	}

	result := buildCorrelationResult(primary[0].Kind, secondary[0].Kind, window, points)

	a.logger.WithFields(logrus.Fields{
		"primary_kind":   result.PrimaryKind,
		"secondary_kind": result.SecondaryKind,
		"window":         window,
		"sample_size":    result.SampleSize,
		"coefficient":    result.Coefficient,
	}).Debug("Correlation analysis completed")

	return result, nil
}

// AnalyzeMultipleCorrelations runs the pairwise analysis for every unordered
// pair of requested kinds that carries at least two points. Per-pair failures
// are logged and skipped so partial results survive; the pairwise loop is
// O(k²) in the number of kinds and checks ctx before each pair.
func (a *CorrelationAnalyzer) AnalyzeMultipleCorrelations(ctx context.Context, records []models.HealthRecord, kinds []models.MetricKind, window models.TimeWindow) ([]models.CorrelationResult, error) {
	if len(kinds) < 2 {
		return nil, NewInsufficientDataErrorf("fewer than 2 measurement kinds requested: %d", len(kinds))
	}

	byKind := make(map[models.MetricKind][]models.HealthRecord)
	requested := make(map[models.MetricKind]bool, len(kinds))
	for _, kind := range kinds {
		requested[kind] = true
	}
	for _, r := range records {
		if requested[r.Kind] {
			byKind[r.Kind] = append(byKind[r.Kind], r)
		}
	}

	viable := make([]models.MetricKind, 0, len(kinds))
	seen := make(map[models.MetricKind]bool, len(kinds))
	for _, kind := range kinds {
		if seen[kind] {
			continue
		}
		seen[kind] = true
		if len(byKind[kind]) < 2 {
			a.logger.WithFields(logrus.Fields{
				"kind":   kind,
				"points": len(byKind[kind]),
			}).Debug("Excluding kind with fewer than 2 points")
			continue
		}
		viable = append(viable, kind)
	}
	sort.Slice(viable, func(i, j int) bool { return viable[i] < viable[j] })

	results := make([]models.CorrelationResult, 0, len(viable)*(len(viable)-1)/2)
	for i := 0; i < len(viable); i++ {
		for j := i + 1; j < len(viable); j++ {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			result, err := a.AnalyzeCorrelations(ctx, byKind[viable[i]], byKind[viable[j]], window)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"primary_kind":   viable[i],
					"secondary_kind": viable[j],
					"window":         window,
				}).WithError(err).Warn("Skipping pair after failed correlation analysis")
				continue
			}
			results = append(results, *result)
		}
	}

	return results, nil
}

// buildCorrelationResult assembles a result from aligned points. All
// classification fields derive from the coefficient and p-value here; they
// are never set anywhere else.
func buildCorrelationResult(primaryKind, secondaryKind models.MetricKind, window models.TimeWindow, points []models.AlignedPoint) *models.CorrelationResult {
	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.PrimaryValue
		y[i] = p.SecondaryValue
	}

	r := pearson(x, y)
	p := approximatePValue(r, len(points))

	return &models.CorrelationResult{
		PrimaryKind:   primaryKind,
		SecondaryKind: secondaryKind,
		Coefficient:   r,
		PValue:        p,
		Interval:      fisherInterval(r, len(points)),
		Window:        window,
		SampleSize:    len(points),
		Points:        points,
		Type:          classifyCorrelationType(r),
		Strength:      classifyStrength(r),
		Direction:     classifyDirection(r),
		Significance:  classifySignificance(p),
		GeneratedAt:   time.Now(),
	}
}

func pearson(x []float64, y []float64) float64 {
	n := len(x)
	if n == 0 || len(y) != n {
		return 0
	}
	meanX := mean(x)
	meanY := mean(y)

	var numerator float64
	var denomX float64
	var denomY float64

	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		numerator += dx * dy
		denomX += dx * dx
		denomY += dy * dy
	}

	denom := math.Sqrt(denomX * denomY)
	if denom == 0 {
		return 0
	}

	corr := numerator / denom
	if corr > 1 {
		return 1
	}
	if corr < -1 {
		return -1
	}
	return corr
}

// approximatePValue maps the t-statistic of the coefficient to coarse
// buckets. It is a deliberately rough classifier for tiering significance,
// not an exact p-value.
func approximatePValue(r float64, n int) float64 {
	if n < 3 {
		return 0.2
	}
	absR := math.Abs(r)
	if absR >= 1 {
		return 0.01
	}

	t := absR * math.Sqrt(float64(n-2)) / math.Sqrt(1-absR*absR)
	switch {
	case t > 2.576:
		return 0.01
	case t > 1.96:
		return 0.05
	case t > 1.645:
		return 0.1
	default:
		return 0.2
	}
}

// fisherInterval builds a 95% confidence interval for the coefficient via
// the Fisher z-transform. With n <= 3 the standard error is undefined and
// with |r| = 1 the transform diverges; both collapse to a degenerate
// interval at r.
func fisherInterval(r float64, n int) models.ConfidenceInterval {
	if n <= 3 || math.Abs(r) >= 1 {
		return models.ConfidenceInterval{Lower: r, Upper: r, Level: confidenceLevel}
	}

	z := 0.5 * math.Log((1+r)/(1-r))
	se := 1 / math.Sqrt(float64(n-3))

	return models.ConfidenceInterval{
		Lower: math.Tanh(z - criticalValue*se),
		Upper: math.Tanh(z + criticalValue*se),
		Level: confidenceLevel,
	}
}

func classifyCorrelationType(r float64) models.CorrelationType {
	absR := math.Abs(r)
	switch {
	case absR > 0.8:
		return models.CorrelationStrong
	case absR > 0.5:
		return models.CorrelationModerate
	case absR > 0.3:
		return models.CorrelationWeak
	default:
		return models.CorrelationNegligible
	}
}

func classifyStrength(r float64) models.CorrelationStrength {
	absR := math.Abs(r)
	switch {
	case absR > 0.8:
		return models.StrengthVeryStrong
	case absR > 0.6:
		return models.StrengthStrong
	case absR > 0.4:
		return models.StrengthModerate
	case absR > 0.2:
		return models.StrengthWeak
	default:
		return models.StrengthVeryWeak
	}
}

func classifyDirection(r float64) models.CorrelationDirection {
	switch {
	case r > 0:
		return models.DirectionPositive
	case r < 0:
		return models.DirectionNegative
	default:
		return models.DirectionNeutral
	}
}

func classifySignificance(p float64) models.SignificanceLevel {
	switch {
	case p <= 0.01:
		return models.HighlySignificant
	case p <= 0.05:
		return models.Significant
	case p <= 0.1:
		return models.MarginallySignificant
	default:
		return models.NotSignificant
	}
}
