package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ChatTurnsTotal           metric.Int64Counter
	ChatTurnDurationSeconds  metric.Float64Histogram
	AIFallbacksTotal         metric.Int64Counter
	SpeechFailuresTotal      metric.Int64Counter
	RecommendationsTotal     metric.Int64Counter
	RejectedSubmissionsTotal metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the instruments ONLY ONCE from the global
// MeterProvider. Instruments created before a provider is installed are
// no-ops, which is what tests rely on.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("khadamat")
		var err error
		m := &AppMetrics{}

		m.ChatTurnsTotal, err = meter.Int64Counter(
			"chat_turns_total",
			metric.WithDescription("Total number of completed chat turns"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turns_total: %v", err)
		}

		m.ChatTurnDurationSeconds, err = meter.Float64Histogram(
			"chat_turn_duration_seconds",
			metric.WithDescription("Duration of a full chat turn in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turn_duration_seconds: %v", err)
		}

		m.AIFallbacksTotal, err = meter.Int64Counter(
			"ai_fallbacks_total",
			metric.WithDescription("Number of AI replies replaced by the fallback reply"),
			metric.WithUnit("{reply}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create ai_fallbacks_total: %v", err)
		}

		m.SpeechFailuresTotal, err = meter.Int64Counter(
			"speech_failures_total",
			metric.WithDescription("Number of solutions that could not be synthesized"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create speech_failures_total: %v", err)
		}

		m.RecommendationsTotal, err = meter.Int64Counter(
			"recommendations_total",
			metric.WithDescription("Recommendations attached to model messages"),
			metric.WithUnit("{recommendation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create recommendations_total: %v", err)
		}

		m.RejectedSubmissionsTotal, err = meter.Int64Counter(
			"chat_rejected_submissions_total",
			metric.WithDescription("Submissions rejected because a turn was already pending"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_rejected_submissions_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global AppMetrics, initializing it on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
