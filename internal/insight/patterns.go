package insight

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/es0612/health-insight-go/internal/models"
	"github.com/sirupsen/logrus"
)

// patternDetector inspects a time-sorted series and returns any patterns it
// finds. Detectors that fail their minimum-length or trigger checks return
// nothing; absence of a pattern is a normal outcome, not an error.
type patternDetector func(records []models.HealthRecord, values []float64, threshold float64) []models.Pattern

// PatternRecognizer classifies temporal patterns in a single metric series
// by dispatching requested categories to dedicated detectors.
type PatternRecognizer struct {
	logger    logrus.FieldLogger
	detectors map[models.PatternCategory]patternDetector
}

// NewPatternRecognizer creates a recognizer with all seven category
// detectors registered. A nil logger disables diagnostics.
func NewPatternRecognizer(logger logrus.FieldLogger) *PatternRecognizer {
	return &PatternRecognizer{
		logger: ensureLogger(logger),
		detectors: map[models.PatternCategory]patternDetector{
			models.PatternTrending:  detectTrending,
			models.PatternCyclical:  detectCyclical,
			models.PatternSeasonal:  detectSeasonal,
			models.PatternSpike:     detectSpikes,
			models.PatternPlateau:   detectPlateau,
			models.PatternDecline:   detectDecline,
			models.PatternIrregular: detectIrregular,
		},
	}
}

// RecognizePatterns sorts the records ascending by time once and runs the
// detector for each requested category at the threshold the sensitivity maps
// to. Spike may contribute several patterns; the other categories contribute
// at most one each.
func (p *PatternRecognizer) RecognizePatterns(records []models.HealthRecord, categories []models.PatternCategory, sensitivity models.Sensitivity) []models.Pattern {
	sorted := make([]models.HealthRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
	})

	values := make([]float64, len(sorted))
	for i, r := range sorted {
		values[i] = r.FloatValue()
	}

	threshold := sensitivity.Threshold()
	patterns := make([]models.Pattern, 0)
	for _, category := range categories {
		detector, ok := p.detectors[category]
		if !ok {
			p.logger.WithField("category", category).Warn("No detector registered for pattern category")
			continue
		}
		patterns = append(patterns, detector(sorted, values, threshold)...)
	}

	p.logger.WithFields(logrus.Fields{
		"kind":        seriesKind(sorted),
		"categories":  len(categories),
		"sensitivity": sensitivity,
		"patterns":    len(patterns),
	}).Debug("Pattern recognition completed")

	return patterns
}

func detectTrending(records []models.HealthRecord, values []float64, threshold float64) []models.Pattern {
	if len(values) < 3 {
		return nil
	}
	s := slope(values)
	if math.Abs(s) <= threshold {
		return nil
	}

	direction := "upward"
	if s < 0 {
		direction = "downward"
	}
	return []models.Pattern{{
		Kind:        seriesKind(records),
		Category:    models.PatternTrending,
		Confidence:  math.Min(1, math.Abs(s)/(2*threshold)),
		StartsAt:    records[0].RecordedAt,
		EndsAt:      records[len(records)-1].RecordedAt,
		Slope:       &s,
		Description: fmt.Sprintf("Consistent %s trend of %.3f per sample", direction, s),
	}}
}

func detectCyclical(records []models.HealthRecord, values []float64, threshold float64) []models.Pattern {
	if len(values) < 7 {
		return nil
	}
	score, lag := autocorrelationScore(values, 2, 7)
	if score <= threshold {
		return nil
	}

	frequency := 1 / float64(lag)
	return []models.Pattern{{
		Kind:        seriesKind(records),
		Category:    models.PatternCyclical,
		Confidence:  math.Min(1, score),
		StartsAt:    records[0].RecordedAt,
		EndsAt:      records[len(records)-1].RecordedAt,
		Frequency:   &frequency,
		Description: fmt.Sprintf("Repeating cycle roughly every %d samples", lag),
	}}
}

func detectSeasonal(records []models.HealthRecord, values []float64, threshold float64) []models.Pattern {
	if len(values) < 365 {
		return nil
	}

	monthSums := make(map[time.Month]float64)
	monthCounts := make(map[time.Month]int)
	for i, r := range records {
		month := r.RecordedAt.UTC().Month()
		monthSums[month] += values[i]
		monthCounts[month]++
	}
	if len(monthCounts) < 12 {
		return nil
	}

	monthlyAverages := make([]float64, 0, 12)
	for month := time.January; month <= time.December; month++ {
		monthlyAverages = append(monthlyAverages, monthSums[month]/float64(monthCounts[month]))
	}

	cv := coefficientOfVariation(monthlyAverages)
	if cv <= threshold {
		return nil
	}

	return []models.Pattern{{
		Kind:        seriesKind(records),
		Category:    models.PatternSeasonal,
		Confidence:  math.Min(1, cv),
		StartsAt:    records[0].RecordedAt,
		EndsAt:      records[len(records)-1].RecordedAt,
		Description: fmt.Sprintf("Monthly averages vary seasonally (cv %.3f)", cv),
	}}
}

// detectSpikes flags every point whose z-score against the whole series
// clears the sensitivity-adjusted bar, so one call may yield several
// patterns. A flat series has no detectable spikes.
func detectSpikes(records []models.HealthRecord, values []float64, threshold float64) []models.Pattern {
	if len(values) < 3 {
		return nil
	}
	meanVal := mean(values)
	sd := stdDev(values, meanVal)
	if sd == 0 {
		return nil
	}

	bar := 3 - 2*threshold
	var patterns []models.Pattern
	for i, v := range values {
		z := math.Abs(v-meanVal) / sd
		if z <= bar {
			continue
		}
		amplitude := v - meanVal
		patterns = append(patterns, models.Pattern{
			Kind:        records[i].Kind,
			Category:    models.PatternSpike,
			Confidence:  math.Min(1, z/5),
			StartsAt:    records[i].RecordedAt,
			EndsAt:      records[i].RecordedAt,
			Amplitude:   &amplitude,
			Description: fmt.Sprintf("Value %.2f deviates %.1f standard deviations from the mean", v, z),
		})
	}
	return patterns
}

func detectPlateau(records []models.HealthRecord, values []float64, threshold float64) []models.Pattern {
	if len(values) < 5 {
		return nil
	}
	cv := coefficientOfVariation(values)
	if cv >= threshold/2 {
		return nil
	}

	return []models.Pattern{{
		Kind:        seriesKind(records),
		Category:    models.PatternPlateau,
		Confidence:  1 - cv/(threshold/2),
		StartsAt:    records[0].RecordedAt,
		EndsAt:      records[len(records)-1].RecordedAt,
		Description: fmt.Sprintf("Values hold steady around %.2f", mean(values)),
	}}
}

func detectDecline(records []models.HealthRecord, values []float64, threshold float64) []models.Pattern {
	if len(values) < 3 {
		return nil
	}
	s := slope(values)
	if s >= -threshold {
		return nil
	}

	return []models.Pattern{{
		Kind:        seriesKind(records),
		Category:    models.PatternDecline,
		Confidence:  math.Min(1, math.Abs(s)/(2*threshold)),
		StartsAt:    records[0].RecordedAt,
		EndsAt:      records[len(records)-1].RecordedAt,
		Slope:       &s,
		Description: fmt.Sprintf("Sustained decline of %.3f per sample", math.Abs(s)),
	}}
}

// detectIrregular scores volatility as the mean absolute consecutive
// difference relative to the series mean. Near-zero means fall back to the
// raw mean difference, mirroring the coefficient of variation guard.
func detectIrregular(records []models.HealthRecord, values []float64, threshold float64) []models.Pattern {
	if len(values) < 5 {
		return nil
	}

	var diffSum float64
	for i := 1; i < len(values); i++ {
		diffSum += math.Abs(values[i] - values[i-1])
	}
	meanDiff := diffSum / float64(len(values)-1)

	meanVal := mean(values)
	score := meanDiff
	if math.Abs(meanVal) >= 1e-10 {
		score = meanDiff / math.Abs(meanVal)
	}
	if score <= threshold {
		return nil
	}

	return []models.Pattern{{
		Kind:        seriesKind(records),
		Category:    models.PatternIrregular,
		Confidence:  math.Min(1, score),
		StartsAt:    records[0].RecordedAt,
		EndsAt:      records[len(records)-1].RecordedAt,
		Description: fmt.Sprintf("Erratic swings averaging %.1f%% of the mean between samples", score*100),
	}}
}
