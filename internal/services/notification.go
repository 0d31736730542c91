package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/es0612/health-insight-go/internal/config"
	"github.com/es0612/health-insight-go/internal/models"
	"github.com/es0612/health-insight-go/internal/telemetry"
)

// Alerts with more anomalies than this are truncated
const maxAlertEntries = 5

// AlertNotifier delivers anomaly alerts over Telegram. Without a bot token
// the notifier stays disabled and every send is a no-op.
type AlertNotifier struct {
	bot         *bot.Bot
	chatID      int64
	minSeverity models.AnomalySeverity
	tracer      *telemetry.InsightTracer
	logger      logrus.FieldLogger
}

// NewAlertNotifier creates a new alert notifier.
func NewAlertNotifier(cfg config.TelegramConfig, minSeverity models.AnomalySeverity, logger logrus.FieldLogger) (*AlertNotifier, error) {
	notifier := &AlertNotifier{
		minSeverity: minSeverity,
		tracer:      telemetry.NewInsightTracer(),
		logger:      logger,
	}

	if cfg.BotToken == "" {
		logger.Info("Telegram bot token not configured, alerts disabled")
		return notifier, nil
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat ID %q: %w", cfg.ChatID, err)
	}

	telegramBot, err := bot.New(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	notifier.bot = telegramBot
	notifier.chatID = chatID
	return notifier, nil
}

// Enabled reports whether the notifier can deliver alerts.
func (n *AlertNotifier) Enabled() bool {
	return n.bot != nil
}

// NotifyAnomalies sends one alert message covering the anomalies at or above
// the configured severity. Anomalies below it are dropped silently. The bool
// reports whether an alert actually went out.
func (n *AlertNotifier) NotifyAnomalies(ctx context.Context, kind models.MetricKind, anomalies []models.AnomalyRecord) (bool, error) {
	alertable := make([]models.AnomalyRecord, 0, len(anomalies))
	for _, anomaly := range anomalies {
		if severityRank(anomaly.Severity) >= severityRank(n.minSeverity) {
			alertable = append(alertable, anomaly)
		}
	}

	if len(alertable) == 0 {
		return false, nil
	}
	if !n.Enabled() {
		n.logger.WithField("kind", kind).Debug("Skipping anomaly alert, notifier disabled")
		return false, nil
	}

	ctx, span := n.tracer.TraceNotification(ctx, "anomaly_alert", "telegram")
	defer span.End()

	message := formatAnomalyMessage(kind, alertable)

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      message,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	n.tracer.RecordNotificationResult(span, err)
	if err != nil {
		return false, fmt.Errorf("failed to send telegram message: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"kind":      kind,
		"anomalies": len(alertable),
	}).Info("Sent anomaly alert")

	return true, nil
}

// formatAnomalyMessage creates a formatted alert message for a batch of
// anomalies on one metric.
func formatAnomalyMessage(kind models.MetricKind, anomalies []models.AnomalyRecord) string {
	var sb strings.Builder
	sb.WriteString("🚨 *Health Anomaly Alert*\n\n")
	sb.WriteString(fmt.Sprintf("Detected %d unusual %s readings:\n\n", len(anomalies), metricDisplayName(kind)))

	shown := anomalies
	if len(shown) > maxAlertEntries {
		shown = shown[:maxAlertEntries]
	}

	for _, anomaly := range shown {
		sb.WriteString(fmt.Sprintf("⚠️ *%s %s*\n", severityDisplayName(anomaly.Severity), anomaly.Category))
		sb.WriteString(fmt.Sprintf("Observed: %.1f (expected %.1f)\n", anomaly.ObservedValue, anomaly.ExpectedValue))
		sb.WriteString(fmt.Sprintf("Deviation: %.1fσ\n", anomaly.Deviation))
		sb.WriteString(fmt.Sprintf("⏰ %s\n\n", anomaly.RecordedAt.Format("Jan 2, 2006 15:04")))
	}

	if len(anomalies) > maxAlertEntries {
		sb.WriteString(fmt.Sprintf("… and %d more\n", len(anomalies)-maxAlertEntries))
	}

	return sb.String()
}

// metricDisplayName turns a metric kind into a human readable label.
func metricDisplayName(kind models.MetricKind) string {
	caser := cases.Title(language.English)
	return caser.String(strings.ReplaceAll(string(kind), "_", " "))
}

func severityDisplayName(severity models.AnomalySeverity) string {
	return cases.Title(language.English).String(string(severity))
}

func severityRank(severity models.AnomalySeverity) int {
	switch severity {
	case models.SeverityMedium:
		return 1
	case models.SeverityHigh:
		return 2
	case models.SeverityCritical:
		return 3
	default:
		return 0
	}
}
