package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	notificationsQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_queued_total",
			Help: "Notifications accepted into the dispatch queue",
		},
		[]string{"event_type"},
	)
	notificationsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		},
		[]string{"event_type"},
	)
	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications published to Kafka",
		},
		[]string{"event_type"},
	)
	notificationsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Notifications that could not be published",
		},
		[]string{"event_type"},
	)
)

func init() {
	prometheus.MustRegister(notificationsQueued, notificationsDropped, notificationsSent, notificationsFailed)
}
