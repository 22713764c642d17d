package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic and attendance writes.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	recordsCreated   *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	backfillRuns     *prometheus.CounterVec
	backfillDuration prometheus.Histogram

	requestCount   uint64
	createdCount   uint64
	rejectedCount  uint64
	backfillCount  uint64
	lastBackfillNs int64
}

// MetricsSnapshot is a point-in-time view of the counters.
type MetricsSnapshot struct {
	RequestsTotal       uint64    `json:"requests_total"`
	RecordsCreated      uint64    `json:"records_created"`
	TransitionsRejected uint64    `json:"transitions_rejected"`
	BackfillRuns        uint64    `json:"backfill_runs"`
	LastBackfillAt      time.Time `json:"last_backfill_at,omitempty"`
	Goroutines          int       `json:"goroutines"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	recordsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_records_created_total",
		Help: "Attendance records created, by lifecycle source",
	}, []string{"source"})

	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_transitions_rejected_total",
		Help: "Attendance transitions rejected, by reason",
	}, []string{"reason"})

	backfillRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_backfill_runs_total",
		Help: "Backfill runs, by mode and outcome",
	}, []string{"mode", "outcome"})

	backfillDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_backfill_duration_seconds",
		Help:    "Duration of a single course backfill run",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, recordsCreated, rejected, backfillRuns, backfillDuration, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		recordsCreated:   recordsCreated,
		rejected:         rejected,
		backfillRuns:     backfillRuns,
		backfillDuration: backfillDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordsCreated counts newly created attendance records.
func (m *MetricsService) RecordsCreated(source models.RecordSource, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsCreated.WithLabelValues(string(source)).Add(float64(n))
	atomic.AddUint64(&m.createdCount, uint64(n))
}

// TransitionRejected counts refused status transitions.
func (m *MetricsService) TransitionRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
	atomic.AddUint64(&m.rejectedCount, 1)
}

// BackfillRun records a completed or failed backfill run.
func (m *MetricsService) BackfillRun(mode string, created int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.backfillRuns.WithLabelValues(mode, outcome).Inc()
	m.backfillDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.backfillCount, 1)
	atomic.StoreInt64(&m.lastBackfillNs, time.Now().UTC().UnixNano())
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	snap := MetricsSnapshot{
		RequestsTotal:       atomic.LoadUint64(&m.requestCount),
		RecordsCreated:      atomic.LoadUint64(&m.createdCount),
		TransitionsRejected: atomic.LoadUint64(&m.rejectedCount),
		BackfillRuns:        atomic.LoadUint64(&m.backfillCount),
		Goroutines:          runtime.NumGoroutine(),
		GeneratedAt:         time.Now().UTC(),
	}
	if ns := atomic.LoadInt64(&m.lastBackfillNs); ns > 0 {
		snap.LastBackfillAt = time.Unix(0, ns).UTC()
	}
	return snap
}
