package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Notification related metrics
	NotificationsCreated *prometheus.CounterVec
	NotificationsEmailed prometheus.Counter
	StreamSubscribers    prometheus.Gauge

	// Prompt session metrics
	PromptsArmed      prometheus.Counter
	PromptsFired      prometheus.Counter
	PromptsSuppressed prometheus.Counter
	PromptsTornDown   prometheus.Counter
	PromptSinkErrors  prometheus.Counter
	PromptSessions    prometheus.Gauge

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg uses the default prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		NotificationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Total number of notifications accepted by the notification service",
		}, []string{"type", "priority"}),
		NotificationsEmailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_emailed_total",
			Help:      "Total number of notifications escalated by e-mail",
		}),
		StreamSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_stream_subscribers",
			Help:      "Current number of open notification streams",
		}),

		PromptsArmed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "armed_total",
			Help:      "Total number of prompt notifiers armed",
		}),
		PromptsFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "fired_total",
			Help:      "Total number of prompt notifiers that reached their deadline",
		}),
		PromptsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "suppressed_total",
			Help:      "Total number of prompt notifiers cancelled by an interaction",
		}),
		PromptsTornDown: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "torn_down_total",
			Help:      "Total number of prompt notifiers torn down",
		}),
		PromptSinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "sink_errors_total",
			Help:      "Total number of failed hand-offs to the notification sink",
		}),
		PromptSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prompt",
			Name:      "sessions",
			Help:      "Current number of mounted prompt sessions",
		}),

		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// NewTestMetrics returns metrics bound to a private registry.
func NewTestMetrics() *Metrics {
	return NewMetrics("test", prometheus.NewRegistry())
}
