package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gasguard_readings_processed_total",
			Help: "Total number of live readings classified, by level",
		},
		[]string{"level"},
	)

	ReadingsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gasguard_readings_skipped_total",
			Help: "Readings dropped without a classification decision",
		},
		[]string{"reason"}, // threshold_fault, debounced
	)

	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gasguard_alerts_emitted_total",
			Help: "Alert records handed to the store writer, by level",
		},
		[]string{"level"},
	)

	AlertWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gasguard_alert_write_failures_total",
			Help: "Alert records lost to store append faults",
		},
	)

	FeedResubscribes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gasguard_feed_resubscribes_total",
			Help: "Times the live value subscription was reopened after a fault",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gasguard_sessions_active",
			Help: "Currently running monitoring sessions",
		},
	)

	GatewayReadings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gasguard_gateway_readings_total",
			Help: "Readings bridged from the sensor gateway topic",
		},
		[]string{"status"}, // published, rejected
	)
)
