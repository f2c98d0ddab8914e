// Package metrics exposes the tracker's prometheus counters. All counters
// register on the default registry and are served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laundry_reservations_started_total",
		Help: "Reservations successfully started.",
	})

	ReservationsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laundry_reservations_ended_total",
		Help: "Reservations ended by their owner.",
	})

	StartConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laundry_start_conflicts_total",
		Help: "Start attempts that lost a concurrent race.",
	})

	AutoReleases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laundry_auto_releases_total",
		Help: "Reservations released by the sweeper after their time elapsed.",
	})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laundry_notifications_sent_total",
		Help: "Completion push notifications delivered.",
	})
)
