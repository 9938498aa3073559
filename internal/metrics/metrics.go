// Package metrics defines the Prometheus collectors shared across the
// service and exposes the /metrics handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// URLCacheHits counts signed-URL resolutions served from the cache.
	URLCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betfeed_url_cache_hits_total",
		Help: "Signed URL resolutions served from the in-memory cache.",
	})

	// URLCacheMisses counts signed-URL resolutions that required an
	// upstream signing call.
	URLCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betfeed_url_cache_misses_total",
		Help: "Signed URL resolutions that fell through to the signer.",
	})

	// FeedPages counts served feed pages by filter.
	FeedPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betfeed_feed_pages_total",
		Help: "Feed pages assembled, labelled by filter.",
	}, []string{"filter"})

	// DetectorTicks counts change-detector ticks by outcome.
	DetectorTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betfeed_detector_ticks_total",
		Help: "Change detector ticks, labelled by outcome (ok|error).",
	}, []string{"outcome"})

	// EventsPublished counts per-bet notifications published to the bus.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betfeed_events_published_total",
		Help: "Per-bet notifications published, labelled by kind.",
	}, []string{"kind"})

	// WSClients tracks currently connected websocket clients.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betfeed_ws_clients",
		Help: "Currently connected websocket clients.",
	})
)

// Handler returns the HTTP handler serving the Prometheus text exposition.
func Handler() http.Handler {
	return promhttp.Handler()
}
