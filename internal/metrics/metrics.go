// Package metrics exposes Prometheus collectors for the market-data
// service, modeled on the teacher's monitoring/prometheus.go.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticksProduced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketfeed_ticks_produced_total",
		Help: "Total number of broadcast ticks produced.",
	})

	dispatchDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketfeed_dispatch_deliveries_total",
		Help: "Total dispatcher deliveries by destination kind.",
	}, []string{"kind"})

	activeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketfeed_active_subscriptions",
		Help: "Current number of valid subscriptions.",
	})

	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketfeed_active_connections",
		Help: "Current number of live websocket connections.",
	})

	sweepRemovals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketfeed_sweep_removals_total",
		Help: "Total subscriptions removed by the expiry sweep.",
	})

	catalogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketfeed_catalog_size",
		Help: "Number of instruments currently in the catalog.",
	})
)

// RecordTick increments the completed-tick counter.
func RecordTick() {
	ticksProduced.Inc()
}

// RecordDelivery increments the delivery counter for the given destination
// kind ("topic", "bulk", "session").
func RecordDelivery(kind string) {
	dispatchDeliveries.WithLabelValues(kind).Inc()
}

// SetActiveSubscriptions sets the current valid-subscription gauge.
func SetActiveSubscriptions(n int) {
	activeSubscriptions.Set(float64(n))
}

// SetActiveConnections sets the current live-connection gauge.
func SetActiveConnections(n int) {
	activeConnections.Set(float64(n))
}

// RecordSweepRemoval increments the sweep-removal counter by n.
func RecordSweepRemoval(n int) {
	sweepRemovals.Add(float64(n))
}

// SetCatalogSize sets the current catalog-size gauge.
func SetCatalogSize(n int) {
	catalogSize.Set(float64(n))
}

// Handler returns the promhttp handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
