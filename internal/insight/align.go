package insight

import (
	"sort"
	"time"

	"github.com/es0612/health-insight-go/internal/models"
)

// bucketStart truncates a timestamp to the start of its calendar bucket in
// UTC. Weeks start on Monday; quarters are the 3-month groups starting in
// January.
func bucketStart(t time.Time, window models.TimeWindow) time.Time {
	t = t.UTC()
	switch window {
	case models.WindowDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case models.WindowWeekly:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		monday := t.AddDate(0, 0, -(weekday - 1))
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
	case models.WindowMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.WindowQuarterly:
		quarterMonth := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC)
	case models.WindowYearly:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// bucketAverages groups records by calendar bucket and averages the values
// within each bucket.
func bucketAverages(records []models.HealthRecord, window models.TimeWindow) map[time.Time]float64 {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, r := range records {
		key := bucketStart(r.RecordedAt, window)
		sums[key] += r.FloatValue()
		counts[key]++
	}

	averages := make(map[time.Time]float64, len(sums))
	for key, sum := range sums {
		averages[key] = sum / float64(counts[key])
	}
	return averages
}

// AlignSeries buckets two measurement series into matching calendar windows
// and pairs the per-bucket averages. Only buckets present in both series are
// emitted, sorted ascending by bucket timestamp. Fails with
// InsufficientDataError when fewer than two aligned buckets remain; every
// correlation computation gates on this check.
func AlignSeries(primary, secondary []models.HealthRecord, window models.TimeWindow) ([]models.AlignedPoint, error) {
	primaryAvgs := bucketAverages(primary, window)
	secondaryAvgs := bucketAverages(secondary, window)

	points := make([]models.AlignedPoint, 0, len(primaryAvgs))
	for key, primaryAvg := range primaryAvgs {
		secondaryAvg, ok := secondaryAvgs[key]
		if !ok {
			continue
		}
		points = append(points, models.AlignedPoint{
			Timestamp:      key,
			PrimaryValue:   primaryAvg,
			SecondaryValue: secondaryAvg,
			Weight:         1.0,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	if len(points) < 2 {
		return nil, NewInsufficientDataErrorf("no aligned time buckets found: %d shared %s buckets, need at least 2", len(points), window)
	}

	return points, nil
}
