package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/es0612/health-insight-go/internal/models"
)

// InsightTracer provides utilities for tracing analysis operations.
// It allows detailed tracking of domain-specific activities like correlation
// analysis and anomaly detection.
type InsightTracer struct{}

// NewInsightTracer creates a new instance of InsightTracer.
func NewInsightTracer() *InsightTracer {
	return &InsightTracer{}
}

// TraceCorrelationAnalysis starts a span for tracing a correlation analysis
// between two metric series.
func (it *InsightTracer) TraceCorrelationAnalysis(ctx context.Context, primary, secondary models.MetricKind, window models.TimeWindow) (context.Context, trace.Span) {
	ctx, span := GetInsightTracer().Start(ctx, "correlation_analysis")
	span.SetAttributes(
		attribute.String("primary_kind", string(primary)),
		attribute.String("secondary_kind", string(secondary)),
		attribute.String("window", string(window)),
	)
	return ctx, span
}

// RecordCorrelationResult adds the outcome of a correlation analysis to an
// existing span.
func (it *InsightTracer) RecordCorrelationResult(span trace.Span, result models.CorrelationResult) {
	span.SetAttributes(
		attribute.Float64("coefficient", result.Coefficient),
		attribute.Float64("p_value", result.PValue),
		attribute.Int("sample_size", result.SampleSize),
		attribute.String("strength", string(result.Strength)),
		attribute.String("direction", string(result.Direction)),
		attribute.String("significance", string(result.Significance)),
	)
}

// TraceCorrelationMatrix starts a span for tracing a pairwise correlation
// sweep across several metric kinds.
func (it *InsightTracer) TraceCorrelationMatrix(ctx context.Context, kinds []models.MetricKind, window models.TimeWindow) (context.Context, trace.Span) {
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	ctx, span := GetInsightTracer().Start(ctx, "correlation_matrix")
	span.SetAttributes(
		attribute.StringSlice("kinds", names),
		attribute.String("window", string(window)),
	)
	return ctx, span
}

// RecordCorrelationMatrix adds the outcome of a pairwise sweep to an
// existing span.
func (it *InsightTracer) RecordCorrelationMatrix(span trace.Span, results []models.CorrelationResult) {
	span.SetAttributes(attribute.Int("pairs_analyzed", len(results)))
}

// TraceLagAnalysis starts a span for tracing a lag sweep between a leading
// and a lagging metric series.
func (it *InsightTracer) TraceLagAnalysis(ctx context.Context, leading, lagging models.MetricKind, maxLagDays int) (context.Context, trace.Span) {
	ctx, span := GetInsightTracer().Start(ctx, "lag_analysis")
	span.SetAttributes(
		attribute.String("leading_kind", string(leading)),
		attribute.String("lagging_kind", string(lagging)),
		attribute.Int("max_lag_days", maxLagDays),
	)
	return ctx, span
}

// RecordLagResult adds the outcome of a lag sweep to an existing span.
func (it *InsightTracer) RecordLagResult(span trace.Span, result models.LaggedCorrelationResult) {
	span.SetAttributes(
		attribute.Int("lags_evaluated", len(result.Correlations)),
		attribute.String("pattern", string(result.Pattern)),
	)
	if result.BestLag != nil {
		span.SetAttributes(
			attribute.Int("best_lag_days", result.BestLag.LagDays),
			attribute.Float64("best_lag_coefficient", result.BestLag.Coefficient),
			attribute.Float64("best_lag_confidence", result.BestLag.Confidence),
		)
	}
}

// TracePatternRecognition starts a span for tracing pattern recognition over
// one metric series.
func (it *InsightTracer) TracePatternRecognition(ctx context.Context, kind models.MetricKind, sensitivity models.Sensitivity) (context.Context, trace.Span) {
	ctx, span := GetInsightTracer().Start(ctx, "pattern_recognition")
	span.SetAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("sensitivity", string(sensitivity)),
	)
	return ctx, span
}

// RecordPatterns adds detected pattern counts to an existing span.
func (it *InsightTracer) RecordPatterns(span trace.Span, patterns []models.Pattern) {
	categories := make([]string, len(patterns))
	for i, pattern := range patterns {
		categories[i] = string(pattern.Category)
	}
	span.SetAttributes(
		attribute.Int("patterns_detected", len(patterns)),
		attribute.StringSlice("categories", categories),
	)
}

// TraceAnomalyDetection starts a span for tracing anomaly detection against
// a baseline window.
func (it *InsightTracer) TraceAnomalyDetection(ctx context.Context, kind models.MetricKind, threshold float64) (context.Context, trace.Span) {
	ctx, span := GetInsightTracer().Start(ctx, "anomaly_detection")
	span.SetAttributes(
		attribute.String("kind", string(kind)),
		attribute.Float64("threshold", threshold),
	)
	return ctx, span
}

// RecordAnomalies adds flagged anomaly counts to an existing span.
func (it *InsightTracer) RecordAnomalies(span trace.Span, anomalies []models.AnomalyRecord) {
	flagged := len(anomalies)
	critical := 0
	for _, anomaly := range anomalies {
		if anomaly.Severity == models.SeverityCritical {
			critical++
		}
	}
	span.SetAttributes(
		attribute.Int("anomalies_flagged", flagged),
		attribute.Int("anomalies_critical", critical),
	)
}

// TraceNotification starts a span for tracing alert delivery.
func (it *InsightTracer) TraceNotification(ctx context.Context, notificationType, channel string) (context.Context, trace.Span) {
	ctx, span := GetInsightTracer().Start(ctx, "notification")
	span.SetAttributes(
		attribute.String("notification_type", notificationType),
		attribute.String("channel", channel),
	)
	return ctx, span
}

// RecordNotificationResult records the outcome of a notification attempt
// onto a span.
func (it *InsightTracer) RecordNotificationResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
