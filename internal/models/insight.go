package models

import "time"

// TimeWindow selects the calendar granularity used to align two series
type TimeWindow string

const (
	WindowDaily     TimeWindow = "daily"
	WindowWeekly    TimeWindow = "weekly"
	WindowMonthly   TimeWindow = "monthly"
	WindowQuarterly TimeWindow = "quarterly"
	WindowYearly    TimeWindow = "yearly"
)

// IsValid reports whether the window is a supported granularity
func (w TimeWindow) IsValid() bool {
	switch w {
	case WindowDaily, WindowWeekly, WindowMonthly, WindowQuarterly, WindowYearly:
		return true
	}
	return false
}

// CorrelationType is the coarse association class derived from |r|
type CorrelationType string

const (
	CorrelationStrong     CorrelationType = "strong"
	CorrelationModerate   CorrelationType = "moderate"
	CorrelationWeak       CorrelationType = "weak"
	CorrelationNegligible CorrelationType = "negligible"
)

// CorrelationStrength is the five-tier strength class derived from |r|
type CorrelationStrength string

const (
	StrengthVeryStrong CorrelationStrength = "very_strong"
	StrengthStrong     CorrelationStrength = "strong"
	StrengthModerate   CorrelationStrength = "moderate"
	StrengthWeak       CorrelationStrength = "weak"
	StrengthVeryWeak   CorrelationStrength = "very_weak"
)

// CorrelationDirection is the sign class of the coefficient
type CorrelationDirection string

const (
	DirectionPositive CorrelationDirection = "positive"
	DirectionNegative CorrelationDirection = "negative"
	DirectionNeutral  CorrelationDirection = "neutral"
)

// SignificanceLevel is the tier derived from the approximate p-value
type SignificanceLevel string

const (
	HighlySignificant     SignificanceLevel = "highly_significant"
	Significant           SignificanceLevel = "significant"
	MarginallySignificant SignificanceLevel = "marginally_significant"
	NotSignificant        SignificanceLevel = "not_significant"
)

// AlignedPoint is one matched time bucket holding the per-bucket averages
// of the primary and secondary series
type AlignedPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	PrimaryValue   float64   `json:"primary_value"`
	SecondaryValue float64   `json:"secondary_value"`
	Weight         float64   `json:"weight"`
}

// ConfidenceInterval bounds a correlation coefficient at a confidence level
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"`
}

// CorrelationResult represents a pairwise correlation analysis between two
// metric series. The classification fields are derived from Coefficient and
// PValue when the result is built and stay consistent with them.
type CorrelationResult struct {
	PrimaryKind   MetricKind           `json:"primary_kind"`
	SecondaryKind MetricKind           `json:"secondary_kind"`
	Coefficient   float64              `json:"coefficient"`
	PValue        float64              `json:"p_value"`
	Interval      ConfidenceInterval   `json:"confidence_interval"`
	Window        TimeWindow           `json:"window"`
	SampleSize    int                  `json:"sample_size"`
	Points        []AlignedPoint       `json:"points,omitempty"`
	Type          CorrelationType      `json:"type"`
	Strength      CorrelationStrength  `json:"strength"`
	Direction     CorrelationDirection `json:"direction"`
	Significance  SignificanceLevel    `json:"significance"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

// LagPattern classifies the delay between two series at the best lag
type LagPattern string

const (
	LagImmediate   LagPattern = "immediate"
	LagShortDelay  LagPattern = "short_delay"
	LagMediumDelay LagPattern = "medium_delay"
	LagLongDelay   LagPattern = "long_delay"
	LagNoPattern   LagPattern = "no_pattern"
)

// LagCorrelation represents the correlation measured at one lag offset
type LagCorrelation struct {
	LagDays     int     `json:"lag_days"`
	Coefficient float64 `json:"coefficient"`
	PValue      float64 `json:"p_value"`
	Confidence  float64 `json:"confidence"`
	SampleSize  int     `json:"sample_size"`
}

// LaggedCorrelationResult represents a lag sweep between a leading and a
// lagging metric series
type LaggedCorrelationResult struct {
	LeadingKind  MetricKind       `json:"leading_kind"`
	LaggingKind  MetricKind       `json:"lagging_kind"`
	Correlations []LagCorrelation `json:"correlations"`
	BestLag      *LagCorrelation  `json:"best_lag,omitempty"`
	Pattern      LagPattern       `json:"pattern"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// PatternCategory identifies the kind of temporal pattern detected in a series
type PatternCategory string

const (
	PatternTrending  PatternCategory = "trending"
	PatternCyclical  PatternCategory = "cyclical"
	PatternSeasonal  PatternCategory = "seasonal"
	PatternSpike     PatternCategory = "spike"
	PatternPlateau   PatternCategory = "plateau"
	PatternDecline   PatternCategory = "decline"
	PatternIrregular PatternCategory = "irregular"
)

// IsValid reports whether the category is a supported pattern kind
func (c PatternCategory) IsValid() bool {
	switch c {
	case PatternTrending, PatternCyclical, PatternSeasonal, PatternSpike, PatternPlateau, PatternDecline, PatternIrregular:
		return true
	}
	return false
}

// Sensitivity selects how aggressively pattern detectors trigger
type Sensitivity string

const (
	SensitivityLow      Sensitivity = "low"
	SensitivityMedium   Sensitivity = "medium"
	SensitivityHigh     Sensitivity = "high"
	SensitivityAdaptive Sensitivity = "adaptive"
)

// Threshold maps the sensitivity level to its numeric detection threshold
func (s Sensitivity) Threshold() float64 {
	switch s {
	case SensitivityLow:
		return 0.3
	case SensitivityMedium:
		return 0.2
	case SensitivityHigh:
		return 0.1
	case SensitivityAdaptive:
		return 0.15
	default:
		return 0.2
	}
}

// IsValid reports whether the sensitivity is a known level
func (s Sensitivity) IsValid() bool {
	switch s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh, SensitivityAdaptive:
		return true
	}
	return false
}

// Pattern represents one detected temporal pattern over a metric series
type Pattern struct {
	Kind        MetricKind      `json:"kind"`
	Category    PatternCategory `json:"category"`
	Confidence  float64         `json:"confidence"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      time.Time       `json:"ends_at"`
	Slope       *float64        `json:"slope,omitempty"`
	Amplitude   *float64        `json:"amplitude,omitempty"`
	Frequency   *float64        `json:"frequency,omitempty"`
	Description string          `json:"description"`
}

// AnomalyCategory splits anomalies by the side of the baseline they fall on
type AnomalyCategory string

const (
	AnomalySpike AnomalyCategory = "spike"
	AnomalyDrop  AnomalyCategory = "drop"
)

// AnomalySeverity tiers an anomaly by its z-score
type AnomalySeverity string

const (
	SeverityMedium   AnomalySeverity = "medium"
	SeverityHigh     AnomalySeverity = "high"
	SeverityCritical AnomalySeverity = "critical"
)

// AnomalyRecord represents one observation flagged against the baseline
type AnomalyRecord struct {
	Kind          MetricKind      `json:"kind"`
	Category      AnomalyCategory `json:"category"`
	Severity      AnomalySeverity `json:"severity"`
	ExpectedValue float64         `json:"expected_value"`
	ObservedValue float64         `json:"observed_value"`
	Deviation     float64         `json:"deviation"`
	Confidence    float64         `json:"confidence"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// SeriesSummary represents a smoothed overview of a single metric series
type SeriesSummary struct {
	Kind        MetricKind `json:"kind"`
	SampleSize  int        `json:"sample_size"`
	Latest      float64    `json:"latest"`
	Mean        float64    `json:"mean"`
	Change      float64    `json:"change"`
	ChangeRate  float64    `json:"change_rate"`
	SMA         []float64  `json:"sma,omitempty"`
	EMA         []float64  `json:"ema,omitempty"`
	Trend       string     `json:"trend"`
	GeneratedAt time.Time  `json:"generated_at"`
}
