// Package metrics exposes Prometheus collectors for provider calls and
// photo lifecycle operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DriveCallsTotal          = "photo_nexus_drive_calls_total"
	DriveCallDurationSeconds = "photo_nexus_drive_call_duration_seconds"
	LifecycleOpsTotal        = "photo_nexus_lifecycle_operations_total"
	LifecycleItemsTotal      = "photo_nexus_lifecycle_items_total"
)

var (
	driveCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: DriveCallsTotal,
		Help: "Count of Google Drive API calls by operation and result",
	}, []string{"operation", "result"})

	driveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    DriveCallDurationSeconds,
		Help:    "Latency of Google Drive API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	lifecycleOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: LifecycleOpsTotal,
		Help: "Count of photo lifecycle operations by outcome",
	}, []string{"operation", "outcome"})

	lifecycleItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: LifecycleItemsTotal,
		Help: "Photos affected by lifecycle operations",
	}, []string{"operation", "result"})
)

func init() {
	prometheus.MustRegister(driveCalls, driveDuration, lifecycleOps, lifecycleItems)
}

// ObserveDriveCall records one provider call started at start.
func ObserveDriveCall(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	driveCalls.WithLabelValues(op, result).Inc()
	driveDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordOperation counts one lifecycle operation.
func RecordOperation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	lifecycleOps.WithLabelValues(op, outcome).Inc()
}

// AddItems counts photos affected by op, e.g. moved or failed.
func AddItems(op, result string, n int) {
	if n > 0 {
		lifecycleItems.WithLabelValues(op, result).Add(float64(n))
	}
}
