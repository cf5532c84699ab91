// Package metrics holds the Prometheus collectors for streak and membership
// activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	StreakTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habitly",
			Name:      "streak_transitions_total",
			Help:      "Check-ins and undos by outcome",
		},
		[]string{"action", "outcome"},
	)
	StoreConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "habitly",
			Name:      "store_conflicts_total",
			Help:      "Conflicting streak updates that had to be retried",
		},
	)
	Joins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habitly",
			Name:      "joins_total",
			Help:      "Join attempts by result",
		},
		[]string{"result"},
	)
	HabitsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "habitly",
			Name:      "habits_created_total",
			Help:      "Habits created",
		},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	AuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Total number of unauthenticated requests",
		},
		[]string{"reason"},
	)
)

var registerOnce sync.Once

// Register adds every collector to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			StreakTransitions,
			StoreConflicts,
			Joins,
			HabitsCreated,
			HTTPRequests,
			HTTPDuration,
			AuthRejections,
		)
	})
}

// CountConflict is a storage.RetryPolicy OnConflict hook.
func CountConflict() {
	StoreConflicts.Inc()
}
