package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for standard event metrics
	eventProcessingLabels = []string{"event_type", "company_id", "consumer_type"}
	// Labels for applied stage transitions
	transitionLabels = []string{"from_stage", "to_stage", "company_id", "trigger"}

	// Standard Event Counters
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_events_received_total",
			Help: "Total number of events received from NATS, labeled by consumer type.",
		},
		eventProcessingLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_events_processed_total",
			Help: "Total number of events successfully processed and acknowledged, labeled by consumer type.",
		},
		eventProcessingLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_events_failed_total",
			Help: "Total number of events that failed processing (resulting in Nack or error), labeled by consumer type.",
		},
		eventProcessingLabels,
	)

	// Histogram for Processing Duration
	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_lifecycle_service_event_processing_duration_seconds",
			Help:    "Histogram of event processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		eventProcessingLabels,
	)

	// Histogram for Routing Duration
	EventRoutingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_lifecycle_service_event_routing_duration_seconds",
			Help:    "Histogram of event routing specific durations (time spent in router.Route).",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		eventProcessingLabels,
	)

	// Counter for ack/nak/DLQ decisions after processing
	eventActionLabels           = []string{"event_type", "company_id", "consumer_type", "action", "error_type"}
	EventProcessingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_event_processing_actions_total",
			Help: "Total count of specific actions taken after event processing, labeled by error type.",
		},
		eventActionLabels,
	)

	// Counter for applied stage transitions
	TransitionsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_transitions_applied_total",
			Help: "Total number of stage transitions applied, labeled by edge and trigger.",
		},
		transitionLabels,
	)

	// Global metrics instance
	Metrics *metricsStore
)

// Metrics related to the decay sweep
var (
	sweepLabels = []string{"company_id"}

	sweepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_lifecycle_service_sweep_duration_seconds",
			Help:    "Histogram of full decay sweep durations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		sweepLabels,
	)
	sweepLeadsEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_sweep_leads_evaluated_total",
			Help: "Total number of leads evaluated by decay sweeps.",
		},
		sweepLabels,
	)
	sweepLeadsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_sweep_leads_failed_total",
			Help: "Total number of leads whose sweep evaluation failed after retries.",
		},
		sweepLabels,
	)
	sweepTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_sweep_tasks_submitted_total",
			Help: "Total number of per-lead tasks submitted to the sweep worker pool.",
		},
		sweepLabels,
	)
	sweepQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lead_lifecycle_service_sweep_queue_length",
		Help: "Approximate number of tasks waiting in the sweep worker pool queue.",
	})
)

// Metrics related to stage event publishing and the outbox
var (
	publishLabels = []string{"company_id"}

	stagePublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_stage_publish_failures_total",
			Help: "Total number of stage change events whose NATS publish failed and were parked in the outbox.",
		},
		publishLabels,
	)
	outboxPendingRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lead_lifecycle_service_outbox_pending_rows",
		Help: "Current number of stage change events waiting in the outbox.",
	})
	outboxRepublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_outbox_republished_total",
			Help: "Total number of outbox rows successfully republished.",
		},
		publishLabels,
	)
	outboxDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_lifecycle_service_outbox_dropped_total",
			Help: "Total number of outbox rows abandoned to the DLQ subject after exceeding max attempts.",
		},
		publishLabels,
	)
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "company_id", "status"}

	// Histogram for Database Operation Duration
	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_lifecycle_service_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// metricsStore holds references to all Prometheus metrics.
type metricsStore struct{}

// InitMetrics initializes and registers the Prometheus metrics if enabled.
// Call this function during application startup.
func InitMetrics(enabled bool) {
	if !enabled {
		return
	}

	metricsEnabled = true

	// Metrics are already auto-registered via promauto, so no explicit
	// registration is needed here.
	Metrics = &metricsStore{}
}

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType, tenant, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType, tenant, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType, tenant, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Inc()
}

// ObserveEventProcessingDuration records the processing time for a specific event.
func ObserveEventProcessingDuration(eventType, tenant, consumerType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventProcessingDurationSeconds.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Observe(duration.Seconds())
}

// ObserveEventRoutingDuration records the routing time for a specific event.
func ObserveEventRoutingDuration(eventType, tenant, consumerType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventRoutingDurationSeconds.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Observe(duration.Seconds())
}

// IncEventProcessingAction increments the counter for a specific processing outcome.
func IncEventProcessingAction(eventType, tenant, consumerType, action, errorType string) {
	if !metricsEnabled {
		return
	}
	EventProcessingActionsTotal.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType, action, SanitizeErrorType(errorType)).Inc()
}

// SanitizeErrorType maps specific errors or provides a default category.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "missing field"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "optimistic locking"), strings.Contains(errStr, "conflict"):
		return "conflict"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "publish"):
		return "nats"
	case strings.Contains(errStr, "panic"):
		return "panic"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	default:
		return "unknown"
	}
}

// IncTransitionApplied increments the counter for an applied stage transition.
func IncTransitionApplied(fromStage, toStage, companyID, trigger string) {
	if !metricsEnabled {
		return
	}
	TransitionsAppliedTotal.WithLabelValues(fromStage, toStage, sanitizeTenant(companyID), trigger).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity, companyID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, sanitizeTenant(companyID), status).Observe(duration.Seconds())
}

// --- Sweep Metric Helpers ---

// ObserveSweepDuration records the wall-clock time of a full decay sweep.
func ObserveSweepDuration(companyID string, duration time.Duration) {
	if Metrics != nil {
		sweepDurationSeconds.WithLabelValues(sanitizeTenant(companyID)).Observe(duration.Seconds())
	}
}

// AddSweepLeadsEvaluated adds to the counter of leads evaluated by sweeps.
func AddSweepLeadsEvaluated(companyID string, count int) {
	if Metrics != nil {
		sweepLeadsEvaluatedTotal.WithLabelValues(sanitizeTenant(companyID)).Add(float64(count))
	}
}

// AddSweepLeadsFailed adds to the counter of per-lead sweep failures.
func AddSweepLeadsFailed(companyID string, count int) {
	if Metrics != nil {
		sweepLeadsFailedTotal.WithLabelValues(sanitizeTenant(companyID)).Add(float64(count))
	}
}

// IncSweepTasksSubmitted increments the counter for tasks submitted to the sweep pool.
func IncSweepTasksSubmitted(companyID string) {
	if Metrics != nil {
		sweepTasksSubmittedTotal.WithLabelValues(sanitizeTenant(companyID)).Inc()
	}
}

// SetSweepQueueLength sets the current sweep pool queue length.
func SetSweepQueueLength(length int) {
	if Metrics != nil {
		sweepQueueLength.Set(float64(length))
	}
}

// --- Publish / Outbox Metric Helpers ---

// IncStagePublishFailure increments the counter for failed stage event publishes.
func IncStagePublishFailure(companyID string) {
	if Metrics != nil {
		stagePublishFailuresTotal.WithLabelValues(sanitizeTenant(companyID)).Inc()
	}
}

// SetOutboxPendingRows sets the current number of pending outbox rows.
func SetOutboxPendingRows(count int) {
	if Metrics != nil {
		outboxPendingRows.Set(float64(count))
	}
}

// IncOutboxRepublished increments the counter for republished outbox rows.
func IncOutboxRepublished(companyID string) {
	if Metrics != nil {
		outboxRepublishedTotal.WithLabelValues(sanitizeTenant(companyID)).Inc()
	}
}

// IncOutboxDropped increments the counter for outbox rows abandoned after max attempts.
func IncOutboxDropped(companyID string) {
	if Metrics != nil {
		outboxDroppedTotal.WithLabelValues(sanitizeTenant(companyID)).Inc()
	}
}

// sanitizeTenant ensures the tenant label is valid or returns a default value.
func sanitizeTenant(tenant string) string {
	if tenant == "" {
		return "unknown"
	}
	return tenant
}
