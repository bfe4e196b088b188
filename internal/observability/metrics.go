package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	activeSessions  prometheus.Gauge
	expiredSessions prometheus.Gauge
	storageBytes    prometheus.Gauge

	cleanupDeletedTotal *prometheus.CounterVec
	jobRunsTotal        *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
	emergencyTotal      prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			storeOpsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "questkeep_store_operations_total",
					Help: "Total document store operations by operation and result.",
				},
				[]string{"op", "result"},
			),
			storeOpDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "questkeep_store_operation_duration_seconds",
					Help:    "Document store operation duration in seconds by operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "questkeep_active_sessions",
					Help: "Non-expired documents seen by the last statistics pass.",
				},
			),
			expiredSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "questkeep_expired_sessions",
					Help: "Expired documents still on disk at the last statistics pass.",
				},
			),
			storageBytes: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "questkeep_storage_bytes",
					Help: "Bytes used by active documents.",
				},
			),
			cleanupDeletedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "questkeep_cleanup_deleted_total",
					Help: "Items removed by cleanup jobs.",
				},
				[]string{"job"},
			),
			jobRunsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "questkeep_job_runs_total",
					Help: "Scheduled job runs by job and status.",
				},
				[]string{"job", "status"},
			),
			jobDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "questkeep_job_duration_seconds",
					Help:    "Scheduled job duration in seconds by job.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"job"},
			),
			emergencyTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "questkeep_emergency_cleanups_total",
					Help: "Emergency cleanups triggered by the hard storage limit.",
				},
			),
		}

		prometheus.MustRegister(
			m.storeOpsTotal,
			m.storeOpDuration,
			m.activeSessions,
			m.expiredSessions,
			m.storageBytes,
			m.cleanupDeletedTotal,
			m.jobRunsTotal,
			m.jobDuration,
			m.emergencyTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordStoreOp counts one store operation. result is "ok", "not_found",
// "expired", "invalid", "corrupt" or "error".
func RecordStoreOp(op, result string, duration time.Duration) {
	m := getMetrics()
	m.storeOpsTotal.WithLabelValues(op, result).Inc()
	m.storeOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func SetSessionCounts(active, expired int) {
	m := getMetrics()
	m.activeSessions.Set(float64(active))
	m.expiredSessions.Set(float64(expired))
}

func SetStorageBytes(n int64) {
	m := getMetrics()
	m.storageBytes.Set(float64(n))
}

func RecordCleanupDeleted(job string, count int) {
	m := getMetrics()
	m.cleanupDeletedTotal.WithLabelValues(job).Add(float64(count))
}

func RecordJobRun(job string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.jobRunsTotal.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func RecordEmergencyCleanup() {
	getMetrics().emergencyTotal.Inc()
}
