package insight

import (
	"time"

	"github.com/es0612/health-insight-go/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// testDay is a fixed anchor so bucket math in tests is reproducible.
var testDay = time.Date(2024, time.March, 4, 8, 30, 0, 0, time.UTC)

// dailyRecords builds one record per day starting at testDay.
func dailyRecords(kind models.MetricKind, values ...float64) []models.HealthRecord {
	return dailyRecordsFrom(kind, testDay, values...)
}

func dailyRecordsFrom(kind models.MetricKind, start time.Time, values ...float64) []models.HealthRecord {
	records := make([]models.HealthRecord, len(values))
	for i, v := range values {
		records[i] = models.HealthRecord{
			ID:         uuid.New(),
			UserID:     uuid.New(),
			Kind:       kind,
			Value:      decimal.NewFromFloat(v),
			Unit:       "unit",
			RecordedAt: start.AddDate(0, 0, i),
			Source:     models.SourceDevice,
		}
	}
	return records
}
