// Package telemetry holds the per-device Prometheus instrumentation for
// the poller component (C6).
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkweigher",
			Subsystem: "poller",
			Name:      "reads_total",
			Help:      "Total Modbus read attempts per device.",
		},
		[]string{"device_id"},
	)

	ReadsSuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkweigher",
			Subsystem: "poller",
			Name:      "reads_success_total",
			Help:      "Successful Modbus reads per device.",
		},
		[]string{"device_id"},
	)

	ReadsError = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkweigher",
			Subsystem: "poller",
			Name:      "reads_error_total",
			Help:      "Modbus reads that failed with a connection or protocol error.",
		},
		[]string{"device_id"},
	)

	ReadsTimeout = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkweigher",
			Subsystem: "poller",
			Name:      "reads_timeout_total",
			Help:      "Modbus reads that exceeded the per-read deadline.",
		},
		[]string{"device_id"},
	)

	ReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkweigher",
			Subsystem: "poller",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts per device.",
		},
		[]string{"device_id"},
	)

	Latency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "checkweigher",
			Subsystem: "poller",
			Name:      "read_latency_seconds",
			Help:      "Wall-clock duration of a Modbus read cycle.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"device_id"},
	)

	LastLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "checkweigher",
			Subsystem: "poller",
			Name:      "last_read_latency_seconds",
			Help:      "Duration of the most recent Modbus read.",
		},
		[]string{"device_id"},
	)

	Connected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "checkweigher",
			Subsystem: "poller",
			Name:      "connected",
			Help:      "1 if the device session is currently connected.",
		},
		[]string{"device_id"},
	)

	StartedAt = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "checkweigher",
			Subsystem: "poller",
			Name:      "started_at_unixtime",
			Help:      "Unix timestamp at which this device's poller started.",
		},
		[]string{"device_id"},
	)
)

// RecordStart stamps the started_at gauge for device at poller startup.
func RecordStart(deviceID string, at time.Time) {
	StartedAt.WithLabelValues(deviceID).Set(float64(at.Unix()))
}

// RecordConnected sets the connected gauge for device.
func RecordConnected(deviceID string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	Connected.WithLabelValues(deviceID).Set(v)
}

// RecordRead updates read counters and latency gauges/histogram for a
// completed read cycle, successful or not.
func RecordRead(deviceID string, d time.Duration) {
	ReadsTotal.WithLabelValues(deviceID).Inc()
	Latency.WithLabelValues(deviceID).Observe(d.Seconds())
	LastLatency.WithLabelValues(deviceID).Set(d.Seconds())
}
