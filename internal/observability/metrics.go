package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registrationsAdmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clubhub",
		Subsystem: "registrations",
		Name:      "admitted_total",
		Help:      "Number of registrations admitted through the capacity gate.",
	})
	registrationsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubhub",
		Subsystem: "registrations",
		Name:      "rejected_total",
		Help:      "Number of registrations rejected, labeled by reason.",
	}, []string{"reason"})
	notificationsPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clubhub",
		Subsystem: "notifications",
		Name:      "persisted_total",
		Help:      "Number of notification rows written.",
	})
	realtimeDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clubhub",
		Subsystem: "notifications",
		Name:      "realtime_dropped_total",
		Help:      "Number of realtime pushes dropped because the recipient was absent or slow.",
	})
	emailEnqueueFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clubhub",
		Subsystem: "notifications",
		Name:      "email_enqueue_failures_total",
		Help:      "Number of email jobs that could not be handed to the queue.",
	})
	broadcastDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clubhub",
		Subsystem: "notifications",
		Name:      "broadcast_duration_seconds",
		Help:      "Time spent fanning a notification out to a club's followers.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		registrationsAdmitted,
		registrationsRejected,
		notificationsPersisted,
		realtimeDropped,
		emailEnqueueFailures,
		broadcastDuration,
	)
}

// RecordRegistrationAdmitted counts a successful admission.
func RecordRegistrationAdmitted() {
	registrationsAdmitted.Inc()
}

// RecordRegistrationRejected counts a typed rejection.
func RecordRegistrationRejected(reason string) {
	registrationsRejected.WithLabelValues(reason).Inc()
}

// RecordNotificationPersisted counts a stored notification row.
func RecordNotificationPersisted() {
	notificationsPersisted.Inc()
}

// RecordRealtimeDrop counts a dropped realtime push.
func RecordRealtimeDrop() {
	realtimeDropped.Inc()
}

// RecordEmailEnqueueFailure counts a failed email hand-off.
func RecordEmailEnqueueFailure() {
	emailEnqueueFailures.Inc()
}

// ObserveBroadcast records the duration of a follower fan-out.
func ObserveBroadcast(d time.Duration) {
	broadcastDuration.Observe(d.Seconds())
}
