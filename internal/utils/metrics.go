// Package utils provides utility functions including metrics collection.
package utils

import (
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var startTime = time.Now()

// Prometheus metrics
var (
	ledgerOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "economy_ledger_operations_total",
		Help: "Total number of ledger handler operations by outcome",
	}, []string{"operation", "status"})

	cacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "economy_cache_requests_total",
		Help: "Cache lookups per repository, by hit or miss",
	}, []string{"repository", "result"})

	cacheLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "economy_cache_loads_total",
		Help: "Loader executions on cache miss, by outcome",
	}, []string{"repository", "status"})

	storeTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "economy_store_transactions_total",
		Help: "Scoped store transactions by outcome",
	}, []string{"repository", "outcome"})

	storeTransactionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "economy_store_transaction_duration_seconds",
		Help:    "Duration of scoped store transactions in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"repository"})

	// activeGoroutines is used by Prometheus for monitoring active goroutines
	//nolint:unused // Used by Prometheus metrics collection
	activeGoroutines = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "economy_goroutines_active",
		Help: "Number of active goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	// uptimeSeconds is used by Prometheus for monitoring application uptime
	//nolint:unused // Used by Prometheus metrics collection
	uptimeSeconds = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "economy_uptime_seconds",
		Help: "Application uptime in seconds",
	}, func() float64 {
		return time.Since(startTime).Seconds()
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "economy_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status_code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "economy_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
)

// Package-level counters backing the JSON summary.
var (
	operationsOK     atomic.Int64
	operationsFailed atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	storeRollbacks   atomic.Int64
)

// RecordOperation counts a handler operation.
func RecordOperation(operation string, ok bool) {
	status := "ok"
	if ok {
		operationsOK.Add(1)
	} else {
		status = "error"
		operationsFailed.Add(1)
	}
	ledgerOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCacheLookup counts a cache hit or miss for repository.
func RecordCacheLookup(repository string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
		cacheHits.Add(1)
	} else {
		cacheMisses.Add(1)
	}
	cacheRequestsTotal.WithLabelValues(repository, result).Inc()
}

// RecordCacheLoad counts a loader execution.
func RecordCacheLoad(repository string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	cacheLoadsTotal.WithLabelValues(repository, status).Inc()
}

// RecordStoreTransaction records the outcome and duration of a scoped
// transaction. Outcome is one of begin_error, commit, commit_error, rollback.
func RecordStoreTransaction(repository, outcome string, duration time.Duration) {
	if outcome == "rollback" {
		storeRollbacks.Add(1)
	}
	storeTransactionsTotal.WithLabelValues(repository, outcome).Inc()
	storeTransactionDuration.WithLabelValues(repository).Observe(duration.Seconds())
}

// MetricsCollector collects basic application metrics.
type MetricsCollector struct {
	startTime time.Time
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime: time.Now(),
	}
}

// RecordHTTPRequest records an HTTP request metric.
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// GetMetrics returns the current metrics as a JSON-serializable struct.
func (m *MetricsCollector) GetMetrics() *Metrics {
	hits, misses := cacheHits.Load(), cacheMisses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return &Metrics{
		Uptime:           time.Since(m.startTime).String(),
		UptimeSeconds:    int64(time.Since(m.startTime).Seconds()),
		Goroutines:       runtime.NumGoroutine(),
		OperationsOK:     operationsOK.Load(),
		OperationsFailed: operationsFailed.Load(),
		CacheHits:        hits,
		CacheMisses:      misses,
		CacheHitRatio:    ratio,
		StoreRollbacks:   storeRollbacks.Load(),
	}
}

// Metrics represents the application metrics.
type Metrics struct {
	Uptime           string  `json:"uptime"`
	UptimeSeconds    int64   `json:"uptime_seconds"`
	Goroutines       int     `json:"goroutines"`
	OperationsOK     int64   `json:"operations_ok"`
	OperationsFailed int64   `json:"operations_failed"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	CacheHitRatio    float64 `json:"cache_hit_ratio"`
	StoreRollbacks   int64   `json:"store_rollbacks"`
}
