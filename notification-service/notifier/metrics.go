package notifier

import "github.com/prometheus/client_golang/prometheus"

var (
	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications sent",
		},
		[]string{"event_type", "channel"},
	)

	notificationsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of notifications that could not be handled",
		},
		[]string{"event_type"},
	)
)

func init() {
	prometheus.MustRegister(notificationsSentTotal)
	prometheus.MustRegister(notificationsFailedTotal)
}

func recordSent(eventType, channel string) {
	notificationsSentTotal.WithLabelValues(eventType, channel).Inc()
}

// RecordFailed counts an event given up on after retries.
func RecordFailed(eventType string) {
	notificationsFailedTotal.WithLabelValues(eventType).Inc()
}
