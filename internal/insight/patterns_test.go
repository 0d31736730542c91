package insight

import (
	"math"
	"testing"
	"time"

	"github.com/es0612/health-insight-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findPattern(patterns []models.Pattern, category models.PatternCategory) *models.Pattern {
	for i := range patterns {
		if patterns[i].Category == category {
			return &patterns[i]
		}
	}
	return nil
}

func TestRecognizePatterns(t *testing.T) {
	recognizer := NewPatternRecognizer(newTestLogger())

	t.Run("steady decrease yields a decline pattern", func(t *testing.T) {
		values := make([]float64, 10)
		for i := range values {
			values[i] = 70.0 - 0.3*float64(i)
		}
		records := dailyRecords(models.MetricWeight, values...)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternTrending, models.PatternDecline}, models.SensitivityMedium)

		decline := findPattern(patterns, models.PatternDecline)
		require.NotNil(t, decline, "a 0.3 per day decrease must register as decline at medium sensitivity")
		require.NotNil(t, decline.Slope)
		assert.Negative(t, *decline.Slope)
		assert.GreaterOrEqual(t, decline.Confidence, 0.0)
		assert.LessOrEqual(t, decline.Confidence, 1.0)

		for _, p := range patterns {
			assert.GreaterOrEqual(t, p.Confidence, 0.0)
			assert.LessOrEqual(t, p.Confidence, 1.0)
		}
	})

	t.Run("rising series yields trending with full confidence", func(t *testing.T) {
		records := dailyRecords(models.MetricSteps, 1000, 2000, 3000, 4000, 5000)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternTrending}, models.SensitivityMedium)
		require.Len(t, patterns, 1)

		trending := patterns[0]
		assert.Equal(t, models.PatternTrending, trending.Category)
		assert.InDelta(t, 1.0, trending.Confidence, 1e-10)
		require.NotNil(t, trending.Slope)
		assert.InDelta(t, 1000.0, *trending.Slope, 1e-10)
		assert.Equal(t, records[0].RecordedAt, trending.StartsAt)
		assert.Equal(t, records[4].RecordedAt, trending.EndsAt)
	})

	t.Run("unsorted input is sorted before detection", func(t *testing.T) {
		records := dailyRecords(models.MetricSteps, 1000, 2000, 3000, 4000, 5000)
		reversed := make([]models.HealthRecord, len(records))
		for i, r := range records {
			reversed[len(records)-1-i] = r
		}

		patterns := recognizer.RecognizePatterns(reversed, []models.PatternCategory{models.PatternTrending, models.PatternDecline}, models.SensitivityMedium)
		assert.NotNil(t, findPattern(patterns, models.PatternTrending), "rising series must trend upward regardless of input order")
		assert.Nil(t, findPattern(patterns, models.PatternDecline))
	})

	t.Run("flat series yields a plateau", func(t *testing.T) {
		records := dailyRecords(models.MetricWeight, 70, 70, 70, 70, 70, 70)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternPlateau}, models.SensitivityMedium)
		require.Len(t, patterns, 1)
		assert.Equal(t, models.PatternPlateau, patterns[0].Category)
		assert.InDelta(t, 1.0, patterns[0].Confidence, 1e-10)
	})

	t.Run("volatile series is not a plateau", func(t *testing.T) {
		records := dailyRecords(models.MetricWeight, 70, 90, 50, 85, 60, 95)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternPlateau}, models.SensitivityMedium)
		assert.Empty(t, patterns)
	})

	t.Run("outlier point yields a spike", func(t *testing.T) {
		records := dailyRecords(models.MetricHeartRate, 10, 10, 10, 10, 10, 10, 10, 10, 10, 50)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternSpike}, models.SensitivityMedium)
		require.Len(t, patterns, 1)

		spike := patterns[0]
		assert.Equal(t, models.PatternSpike, spike.Category)
		assert.Equal(t, spike.StartsAt, spike.EndsAt, "a spike is a single point in time")
		assert.Equal(t, records[9].RecordedAt, spike.StartsAt)
		require.NotNil(t, spike.Amplitude)
		assert.Positive(t, *spike.Amplitude)
	})

	t.Run("constant series has no detectable spikes", func(t *testing.T) {
		records := dailyRecords(models.MetricHeartRate, 10, 10, 10, 10, 10)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternSpike}, models.SensitivityMedium)
		assert.Empty(t, patterns)
	})

	t.Run("repeating wave yields a cyclical pattern", func(t *testing.T) {
		base := []float64{60, 75, 45}
		values := make([]float64, 15)
		for i := range values {
			values[i] = base[i%3]
		}
		records := dailyRecords(models.MetricHeartRate, values...)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternCyclical}, models.SensitivityMedium)
		require.Len(t, patterns, 1)

		cyclical := patterns[0]
		assert.Equal(t, models.PatternCyclical, cyclical.Category)
		require.NotNil(t, cyclical.Frequency)
		assert.InDelta(t, 1.0/3.0, *cyclical.Frequency, 1e-10)
	})

	t.Run("short series cannot be cyclical", func(t *testing.T) {
		records := dailyRecords(models.MetricHeartRate, 60, 75, 45, 60, 75)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternCyclical}, models.SensitivityMedium)
		assert.Empty(t, patterns)
	})

	t.Run("winter summer split yields a seasonal pattern", func(t *testing.T) {
		start := time.Date(2023, time.January, 1, 9, 0, 0, 0, time.UTC)
		values := make([]float64, 400)
		for i := range values {
			month := start.AddDate(0, 0, i).Month()
			if month >= time.April && month <= time.September {
				values[i] = 200
			} else {
				values[i] = 100
			}
		}
		records := dailyRecordsFrom(models.MetricCalories, start, values...)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternSeasonal}, models.SensitivityMedium)
		require.Len(t, patterns, 1)
		assert.Equal(t, models.PatternSeasonal, patterns[0].Category)
		assert.Positive(t, patterns[0].Confidence)
	})

	t.Run("less than a year cannot be seasonal", func(t *testing.T) {
		values := make([]float64, 100)
		for i := range values {
			values[i] = float64(100 + i%30)
		}
		records := dailyRecords(models.MetricCalories, values...)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternSeasonal}, models.SensitivityMedium)
		assert.Empty(t, patterns)
	})

	t.Run("erratic swings yield an irregular pattern", func(t *testing.T) {
		records := dailyRecords(models.MetricBloodGlucose, 10, 50, 5, 60, 8, 55, 12)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternIrregular}, models.SensitivityMedium)
		require.Len(t, patterns, 1)
		assert.Equal(t, models.PatternIrregular, patterns[0].Category)
		assert.InDelta(t, 1.0, patterns[0].Confidence, 1e-10, "swings larger than the mean cap at full confidence")
	})

	t.Run("smooth drift is not irregular", func(t *testing.T) {
		records := dailyRecords(models.MetricBloodGlucose, 10.0, 10.1, 10.2, 10.3, 10.4)

		patterns := recognizer.RecognizePatterns(records, []models.PatternCategory{models.PatternIrregular}, models.SensitivityMedium)
		assert.Empty(t, patterns)
	})

	t.Run("sensitivity widens or narrows detection", func(t *testing.T) {
		values := make([]float64, 10)
		for i := range values {
			values[i] = 100 + 0.12*float64(i)
		}
		records := dailyRecords(models.MetricWeight, values...)
		categories := []models.PatternCategory{models.PatternTrending}

		assert.Empty(t, recognizer.RecognizePatterns(records, categories, models.SensitivityMedium), "slope 0.12 stays under the 0.2 threshold")
		assert.Len(t, recognizer.RecognizePatterns(records, categories, models.SensitivityHigh), 1, "slope 0.12 clears the 0.1 threshold")
	})

	t.Run("no categories requested yields nothing", func(t *testing.T) {
		records := dailyRecords(models.MetricWeight, 70, 71, 72)
		patterns := recognizer.RecognizePatterns(records, nil, models.SensitivityMedium)
		assert.Empty(t, patterns)
	})

	t.Run("empty record set yields nothing", func(t *testing.T) {
		patterns := recognizer.RecognizePatterns(nil, []models.PatternCategory{models.PatternTrending, models.PatternSpike}, models.SensitivityMedium)
		assert.Empty(t, patterns)
	})
}

func BenchmarkRecognizePatterns(b *testing.B) {
	recognizer := NewPatternRecognizer(nil)
	values := make([]float64, 365)
	for i := range values {
		values[i] = 70 + math.Sin(float64(i)/3)*2 + float64(i)*0.01
	}
	records := dailyRecords(models.MetricWeight, values...)
	categories := []models.PatternCategory{
		models.PatternTrending,
		models.PatternCyclical,
		models.PatternSpike,
		models.PatternPlateau,
		models.PatternDecline,
		models.PatternIrregular,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		recognizer.RecognizePatterns(records, categories, models.SensitivityMedium)
	}
}
