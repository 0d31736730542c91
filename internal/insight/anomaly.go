package insight

import (
	"math"

	"github.com/es0612/health-insight-go/internal/models"
	"github.com/sirupsen/logrus"
)

// AnomalyDetector flags observations whose deviation from a baseline
// distribution exceeds a z-score threshold.
type AnomalyDetector struct {
	logger logrus.FieldLogger
}

// NewAnomalyDetector creates a new anomaly detector. A nil logger disables
// diagnostics.
func NewAnomalyDetector(logger logrus.FieldLogger) *AnomalyDetector {
	return &AnomalyDetector{
		logger: ensureLogger(logger),
	}
}

// DetectAnomalies scores every candidate against the mean and sample
// standard deviation of the baseline collection and flags those whose
// z-score exceeds the threshold. A baseline without variance makes z-scores
// meaningless, so it yields no anomalies instead of a division fault.
func (d *AnomalyDetector) DetectAnomalies(candidates, baseline []models.HealthRecord, threshold float64) ([]models.AnomalyRecord, error) {
	if len(candidates) == 0 {
		return nil, NewInsufficientDataError("no candidate records provided")
	}
	if len(baseline) == 0 {
		return nil, NewInsufficientDataError("no baseline records provided")
	}

	baselineValues := make([]float64, len(baseline))
	for i, r := range baseline {
		baselineValues[i] = r.FloatValue()
	}
	baselineMean := mean(baselineValues)
	baselineStdDev := stdDev(baselineValues, baselineMean)

	if baselineStdDev == 0 {
		d.logger.WithFields(logrus.Fields{
			"kind":          seriesKind(baseline),
			"baseline_size": len(baseline),
		}).Debug("Baseline has no variance, anomalies are undetectable")
		return []models.AnomalyRecord{}, nil
	}

	anomalies := make([]models.AnomalyRecord, 0)
	for _, candidate := range candidates {
		value := candidate.FloatValue()
		z := math.Abs(value-baselineMean) / baselineStdDev
		if z <= threshold {
			continue
		}

		category := models.AnomalyDrop
		if value > baselineMean {
			category = models.AnomalySpike
		}

		anomalies = append(anomalies, models.AnomalyRecord{
			Kind:          candidate.Kind,
			Category:      category,
			Severity:      classifySeverity(z),
			ExpectedValue: baselineMean,
			ObservedValue: value,
			Deviation:     z,
			Confidence:    math.Min(1, z/5),
			RecordedAt:    candidate.RecordedAt,
		})
	}

	d.logger.WithFields(logrus.Fields{
		"kind":       seriesKind(candidates),
		"candidates": len(candidates),
		"anomalies":  len(anomalies),
		"threshold":  threshold,
	}).Debug("Anomaly detection completed")

	return anomalies, nil
}

func classifySeverity(z float64) models.AnomalySeverity {
	switch {
	case z > 4:
		return models.SeverityCritical
	case z > 3:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}
