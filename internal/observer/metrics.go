package observer

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for standard event metrics
	eventProcessingLabels = []string{"event_type", "consumer_type"}
	// Labels for tracking specific processing actions
	eventActionLabels = []string{"event_type", "consumer_type", "action", "error_type"}

	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_tracker_events_received_total",
			Help: "Total number of events received from NATS, labeled by consumer type.",
		},
		eventProcessingLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_tracker_events_processed_total",
			Help: "Total number of events successfully processed and acknowledged, labeled by consumer type.",
		},
		eventProcessingLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_tracker_events_failed_total",
			Help: "Total number of events that failed processing (resulting in Nack or error), labeled by consumer type.",
		},
		eventProcessingLabels,
	)

	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "followup_tracker_event_processing_duration_seconds",
			Help:    "Histogram of event processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		eventProcessingLabels,
	)

	EventRoutingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "followup_tracker_event_routing_duration_seconds",
			Help:    "Histogram of time spent in router.Route.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		eventProcessingLabels,
	)

	EventProcessingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_tracker_event_processing_actions_total",
			Help: "Total count of specific actions taken after event processing, labeled by error type.",
		},
		eventActionLabels,
	)

	// Global metrics instance
	Metrics *metricsStore
)

// Contact reconciliation metrics
var (
	contactSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_tracker_contact_saves_total",
			Help: "Save events by outcome and how the existing record was matched.",
		},
		[]string{"outcome", "match"},
	)
	contactUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_tracker_contact_updates_total",
			Help: "Manual edits by outcome.",
		},
		[]string{"outcome"},
	)
	followupsScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_tracker_followups_scheduled_total",
			Help: "Follow-up dates set automatically, by the path that set them.",
		},
		[]string{"source"},
	)
	statusDowngradesBlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "followup_tracker_status_downgrades_blocked_total",
		Help: "Save events whose status was ignored because the stored status ranks higher or is Lost.",
	})
)

// HTTP metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_tracker_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "code"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "followup_tracker_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	httpRateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_tracker_http_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		},
		[]string{"route"},
	)
)

// Metrics related to DLQ processing
var (
	dlqFetchRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlq_fetch_requests_total",
		Help: "Total number of fetch requests made to the DLQ stream.",
	})
	dlqFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlq_fetch_errors_total",
		Help: "Total number of errors encountered during DLQ fetch requests.",
	})
	dlqWorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dlq_workers_active",
		Help: "Current number of active worker goroutines in the DLQ pool.",
	})

	dlqEventLabels = []string{"event_type"}

	dlqTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_tasks_submitted_total",
			Help: "Total number of tasks submitted to the DLQ worker pool.",
		},
		dlqEventLabels,
	)
	dlqProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dlq_processing_duration_seconds",
			Help:    "Histogram of processing durations for DLQ messages.",
			Buckets: prometheus.DefBuckets,
		},
		dlqEventLabels,
	)
	dlqTaskRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_task_retries_total",
			Help: "Total number of retry attempts (NAKs with delay) for DLQ messages.",
		},
		dlqEventLabels,
	)
	dlqAcksSuccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_acks_success_total",
			Help: "Total number of successful acknowledgements (ACKs) for DLQ messages.",
		},
		dlqEventLabels,
	)
	dlqAcksFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_acks_failure_total",
			Help: "Total number of failed acknowledgements (NAKs, Term) for DLQ messages (excluding retries).",
		},
		dlqEventLabels,
	)
	dlqTasksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_tasks_dropped_total",
			Help: "Total number of DLQ messages dropped after exceeding max retries.",
		},
		dlqEventLabels,
	)
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "followup_tracker_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// Follow-up reminder job metrics
var (
	reminderRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_reminder_runs_total",
			Help: "Reminder job executions by result.",
		},
		[]string{"status"},
	)
	reminderDigestsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "followup_reminder_digests_published_total",
		Help: "Per-owner due follow-up digests published.",
	})
	reminderPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "followup_reminder_publish_errors_total",
		Help: "Digests that could not be published.",
	})
	reminderRunDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "followup_reminder_run_duration_seconds",
		Help:    "Histogram of reminder job durations.",
		Buckets: prometheus.DefBuckets,
	})
)

// --- Load Generator Metrics ---
var (
	loadgenLabels = []string{"subject"}

	loadgenMessagesAttemptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_messages_attempted_total",
			Help: "Total number of messages the load generator attempted to publish.",
		},
		loadgenLabels,
	)
	loadgenMessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_messages_published_total",
			Help: "Total number of messages successfully published by the load generator.",
		},
		loadgenLabels,
	)
	loadgenPublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_publish_errors_total",
			Help: "Total number of errors encountered by the load generator during publishing.",
		},
		loadgenLabels,
	)
)

// metricsStore marks that InitMetrics ran with metrics enabled. The
// collectors themselves are registered by promauto.
type metricsStore struct{}

// InitMetrics toggles metric collection. Call this function during application startup.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
	if !enabled {
		Metrics = nil
		return
	}
	Metrics = &metricsStore{}
}

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(sanitizeLabel(eventType), consumerType).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(sanitizeLabel(eventType), consumerType).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(sanitizeLabel(eventType), consumerType).Inc()
}

// sanitizeLabel ensures a label value is non-empty.
func sanitizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// --- Contact Metric Helpers ---

// IncContactSave counts one save event. match is one of exact, name_fallback, new or none.
func IncContactSave(outcome, match string) {
	if !metricsEnabled {
		return
	}
	contactSavesTotal.WithLabelValues(sanitizeLabel(outcome), sanitizeLabel(match)).Inc()
}

// IncContactUpdate counts one manual edit.
func IncContactUpdate(outcome string) {
	if !metricsEnabled {
		return
	}
	contactUpdatesTotal.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

// IncFollowupScheduled counts an automatically set follow-up date.
func IncFollowupScheduled(source string) {
	if !metricsEnabled {
		return
	}
	followupsScheduledTotal.WithLabelValues(sanitizeLabel(source)).Inc()
}

// IncStatusDowngradeBlocked counts a save whose incoming status lost the merge.
func IncStatusDowngradeBlocked() {
	if !metricsEnabled {
		return
	}
	statusDowngradesBlockedTotal.Inc()
}

// --- HTTP Metric Helpers ---

// RecordHTTPRequest increments the request counter and observes duration.
func RecordHTTPRequest(route, method string, code int, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	route = sanitizeLabel(route)
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route, method).Observe(duration.Seconds())
}

// IncHTTPRateLimited counts a request rejected by the rate limiter.
func IncHTTPRateLimited(route string) {
	if !metricsEnabled {
		return
	}
	httpRateLimitedTotal.WithLabelValues(sanitizeLabel(route)).Inc()
}

// --- DLQ Metric Helpers ---

// IncDlqFetchRequest increments the DLQ fetch request counter.
func IncDlqFetchRequest() {
	if Metrics != nil {
		dlqFetchRequestsTotal.Inc()
	}
}

// IncDlqFetchError increments the DLQ fetch error counter.
func IncDlqFetchError() {
	if Metrics != nil {
		dlqFetchErrorsTotal.Inc()
	}
}

// IncDlqTasksSubmitted increments the counter for tasks submitted to the pool.
func IncDlqTasksSubmitted(eventType string) {
	if Metrics != nil {
		dlqTasksSubmittedTotal.WithLabelValues(sanitizeLabel(eventType)).Inc()
	}
}

// SetDlqWorkersActive sets the current number of active DLQ workers.
func SetDlqWorkersActive(count int) {
	if Metrics != nil {
		dlqWorkersActive.Set(float64(count))
	}
}

// ObserveDlqProcessingDuration records the processing time for a DLQ message.
func ObserveDlqProcessingDuration(eventType string, duration time.Duration) {
	if Metrics != nil {
		dlqProcessingDurationSeconds.WithLabelValues(sanitizeLabel(eventType)).Observe(duration.Seconds())
	}
}

// IncDlqTaskRetry increments the counter for DLQ message retry attempts.
func IncDlqTaskRetry(eventType string) {
	if Metrics != nil {
		dlqTaskRetriesTotal.WithLabelValues(sanitizeLabel(eventType)).Inc()
	}
}

// IncDlqAckSuccess increments the counter for successful DLQ message ACKs.
func IncDlqAckSuccess(eventType string) {
	if Metrics != nil {
		dlqAcksSuccessTotal.WithLabelValues(sanitizeLabel(eventType)).Inc()
	}
}

// IncDlqAckFailure increments the counter for failed DLQ message ACKs/TERMs (non-retry).
func IncDlqAckFailure(eventType string) {
	if Metrics != nil {
		dlqAcksFailureTotal.WithLabelValues(sanitizeLabel(eventType)).Inc()
	}
}

// IncDlqTasksDropped increments the counter for DLQ messages dropped after max retries.
func IncDlqTasksDropped(eventType string) {
	if Metrics != nil {
		dlqTasksDroppedTotal.WithLabelValues(sanitizeLabel(eventType)).Inc()
	}
}

// ObserveEventProcessingDuration records the processing time for a specific event.
func ObserveEventProcessingDuration(eventType, consumerType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventProcessingDurationSeconds.WithLabelValues(sanitizeLabel(eventType), consumerType).Observe(duration.Seconds())
}

// ObserveEventRoutingDuration records the routing time for a specific event.
func ObserveEventRoutingDuration(eventType, consumerType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventRoutingDurationSeconds.WithLabelValues(sanitizeLabel(eventType), consumerType).Observe(duration.Seconds())
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, status).Observe(duration.Seconds())
}

// IncEventProcessingAction increments the counter for a specific processing outcome.
func IncEventProcessingAction(eventType, consumerType, action, errorType string) {
	if !metricsEnabled {
		return
	}
	EventProcessingActionsTotal.WithLabelValues(sanitizeLabel(eventType), consumerType, action, SanitizeErrorType(errorType)).Inc()
}

// SanitizeErrorType maps specific errors or provides a default category.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "already claimed"):
		return "already_claimed"
	case strings.Contains(errStr, "not authenticated"):
		return "unauthenticated"
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "missing field"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}

// --- Reminder Metric Helpers ---

// RecordReminderRun records one reminder job execution.
func RecordReminderRun(status string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	reminderRunsTotal.WithLabelValues(sanitizeLabel(status)).Inc()
	reminderRunDurationSeconds.Observe(duration.Seconds())
}

// IncReminderDigestPublished counts a published digest.
func IncReminderDigestPublished() {
	if !metricsEnabled {
		return
	}
	reminderDigestsPublishedTotal.Inc()
}

// IncReminderPublishError counts a digest publish failure.
func IncReminderPublishError() {
	if !metricsEnabled {
		return
	}
	reminderPublishErrorsTotal.Inc()
}

// --- Load Generator Metric Helpers ---

// IncLoadgenMessagesAttempted increments the counter for attempted message publications.
func IncLoadgenMessagesAttempted(subject string) {
	if Metrics != nil {
		loadgenMessagesAttemptedTotal.WithLabelValues(subject).Inc()
	}
}

// IncLoadgenMessagesPublished increments the counter for successfully published messages.
func IncLoadgenMessagesPublished(subject string) {
	if Metrics != nil {
		loadgenMessagesPublishedTotal.WithLabelValues(subject).Inc()
	}
}

// IncLoadgenPublishErrors increments the counter for publishing errors.
func IncLoadgenPublishErrors(subject string) {
	if Metrics != nil {
		loadgenPublishErrorsTotal.WithLabelValues(subject).Inc()
	}
}
