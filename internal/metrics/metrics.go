// Package metrics exposes Prometheus collectors for the catalog builder.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	structureRequestsTotal *prometheus.CounterVec
	itemsProcessedTotal    *prometheus.CounterVec
	throttleWaitSeconds    prometheus.Histogram
	catalogDatasets        prometheus.Gauge
	quotaWindowRemaining   prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		structureRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_structure_requests_total",
				Help: "Total structure endpoint requests, labeled by HTTP status class.",
			},
			[]string{"status"},
		)

		itemsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_items_processed_total",
				Help: "Total structure definitions attempted, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		throttleWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_throttle_wait_seconds",
				Help:    "Histogram of quota-window wait durations.",
				Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600},
			},
		)

		catalogDatasets = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_datasets",
				Help: "Number of datasets currently held in the catalog.",
			},
		)

		quotaWindowRemaining = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_quota_window_remaining",
				Help: "Requests remaining in the current quota window.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStructureRequest counts a structure endpoint call by status class.
func ObserveStructureRequest(status string) {
	if structureRequestsTotal == nil {
		return
	}
	structureRequestsTotal.WithLabelValues(status).Inc()
}

// ObserveItem counts an attempted item by outcome (extracted, failed,
// quota-deferred).
func ObserveItem(outcome string) {
	if itemsProcessedTotal == nil {
		return
	}
	itemsProcessedTotal.WithLabelValues(outcome).Inc()
}

// ObserveThrottleWait records one quota-window wait.
func ObserveThrottleWait(d time.Duration) {
	if throttleWaitSeconds == nil {
		return
	}
	throttleWaitSeconds.Observe(d.Seconds())
}

// SetCatalogDatasets reports the catalog size.
func SetCatalogDatasets(n int) {
	if catalogDatasets == nil {
		return
	}
	catalogDatasets.Set(float64(n))
}

// SetQuotaRemaining reports the unspent request budget of the current window.
func SetQuotaRemaining(n int) {
	if quotaWindowRemaining == nil {
		return
	}
	quotaWindowRemaining.Set(float64(n))
}
