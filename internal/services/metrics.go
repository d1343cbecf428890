// Package services – domain metrics
//
// Prometheus collectors for the messaging core's domain events. HTTP traffic
// metrics live in the middleware layer; the counters here track business
// outcomes (messages written, notifications dispatched) independent of
// transport.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// messagesSent counts persisted messages by sender side.
	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_messages_sent_total",
			Help: "Total number of messages persisted, by sender kind.",
		},
		[]string{"sender_kind"},
	)

	// notificationsCreated counts notification rows written, by type.
	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_notifications_created_total",
			Help: "Total number of notifications created, by type.",
		},
		[]string{"type"},
	)

	// notificationsFailed counts notification writes that failed. These are
	// best-effort side effects, so failures never surface to callers; the
	// counter is the only aggregate signal.
	notificationsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_notifications_failed_total",
			Help: "Total number of notification creations that failed, by type.",
		},
		[]string{"type"},
	)

	// notificationsSwept counts rows removed by the retention sweeper.
	notificationsSwept = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_notifications_swept_total",
			Help: "Total number of notifications removed by the retention sweeper, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(messagesSent, notificationsCreated, notificationsFailed, notificationsSwept)
}
