package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "writeas"

// Recorder counts cache and transport activity of a post client.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	cacheStores   *prometheus.CounterVec
	evictions     prometheus.Counter
	pageFetches   prometheus.Counter
	fetchFailures *prometheus.CounterVec
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups answered from the bounded cache, by operation.",
		}, []string{"op"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that fell through to the API, by operation.",
		}, []string{"op"}),
		cacheStores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_stores_total",
			Help:      "Results written to the bounded cache, by operation.",
		}, []string{"op"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries dropped because the cache was full.",
		}),
		pageFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetches_total",
			Help:      "Collection pages requested from the API.",
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "API requests that returned no data, by operation.",
		}, []string{"op"}),
	}
	r.registry.MustRegister(r.cacheHits, r.cacheMisses, r.cacheStores, r.evictions, r.pageFetches, r.fetchFailures)
	return r
}

// Handler serves the recorder's metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) CacheHit(op string) {
	if r != nil {
		r.cacheHits.WithLabelValues(op).Inc()
	}
}

func (r *Recorder) CacheMiss(op string) {
	if r != nil {
		r.cacheMisses.WithLabelValues(op).Inc()
	}
}

func (r *Recorder) CacheStore(op string) {
	if r != nil {
		r.cacheStores.WithLabelValues(op).Inc()
	}
}

func (r *Recorder) Eviction() {
	if r != nil {
		r.evictions.Inc()
	}
}

func (r *Recorder) PageFetch() {
	if r != nil {
		r.pageFetches.Inc()
	}
}

func (r *Recorder) FetchFailure(op string) {
	if r != nil {
		r.fetchFailures.WithLabelValues(op).Inc()
	}
}
