package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	reminderEvents  *prometheus.CounterVec
	eligibleSize    prometheus.Histogram
	activeSessions  prometheus.Gauge
	purgedReminders prometheus.Counter
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	reminderEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_events_total",
		Help: "Reminder lifecycle and viewer events",
	}, []string{"event"})

	eligibleSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminder_eligible_size",
		Help:    "Number of reminders eligible per evaluation",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reminder_sessions_open",
		Help: "Reminder presentation sessions currently open",
	})

	purgedReminders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_purged_total",
		Help: "Expired reminders removed by housekeeping",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		reminderEvents, eligibleSize, activeSessions, purgedReminders, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		reminderEvents:  reminderEvents,
		eligibleSize:    eligibleSize,
		activeSessions:  activeSessions,
		purgedReminders: purgedReminders,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordReminderEvent counts events such as created, viewed or dismissed.
func (m *MetricsService) RecordReminderEvent(event string) {
	if m == nil {
		return
	}
	m.reminderEvents.WithLabelValues(event).Inc()
}

// ObserveEligible records how many reminders one evaluation produced.
func (m *MetricsService) ObserveEligible(count int) {
	if m == nil {
		return
	}
	m.eligibleSize.Observe(float64(count))
}

// SetOpenSessions reports the number of open presentation sessions.
func (m *MetricsService) SetOpenSessions(count int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

// AddPurgedReminders counts expired reminders removed by housekeeping.
func (m *MetricsService) AddPurgedReminders(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.purgedReminders.Add(float64(count))
}
