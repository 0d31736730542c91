package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MetricKind identifies the kind of health measurement a record carries
type MetricKind string

const (
	MetricWeight        MetricKind = "weight"
	MetricSteps         MetricKind = "steps"
	MetricHeartRate     MetricKind = "heart_rate"
	MetricCalories      MetricKind = "calories"
	MetricSleepDuration MetricKind = "sleep_duration"
	MetricBloodGlucose  MetricKind = "blood_glucose"
)

// IsValid reports whether the kind is one of the supported metrics
func (k MetricKind) IsValid() bool {
	switch k {
	case MetricWeight, MetricSteps, MetricHeartRate, MetricCalories, MetricSleepDuration, MetricBloodGlucose:
		return true
	}
	return false
}

// DataSource identifies how a record entered the system
type DataSource string

const (
	SourceDevice DataSource = "device" // synced from a platform health bridge
	SourceManual DataSource = "manual" // entered by the user
)

// IsValid reports whether the source is a known provenance tag
func (s DataSource) IsValid() bool {
	return s == SourceDevice || s == SourceManual
}

// HealthRecord represents a single time-stamped health measurement
type HealthRecord struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	Kind       MetricKind      `json:"kind" db:"kind"`
	Value      decimal.Decimal `json:"value" db:"value"`
	Unit       string          `json:"unit" db:"unit"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
	Source     DataSource      `json:"source" db:"source"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// FloatValue returns the measurement value as a float64 for statistical work
func (r HealthRecord) FloatValue() float64 {
	return r.Value.InexactFloat64()
}

// HealthRecordRequest represents a record submission
type HealthRecordRequest struct {
	Kind       MetricKind      `json:"kind" binding:"required"`
	Value      decimal.Decimal `json:"value" binding:"required"`
	Unit       string          `json:"unit" binding:"required"`
	RecordedAt time.Time       `json:"recorded_at" binding:"required"`
	Source     DataSource      `json:"source"`
}
