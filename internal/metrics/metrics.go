package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	redemptions     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// Snapshot is a point-in-time view of operational counters, served as JSON by
// the metrics summary endpoint.
type Snapshot struct {
	RequestsTotal     int64   `json:"requests_total"`
	RequestErrors     int64   `json:"request_errors"`
	OffersAccepted    int64   `json:"offers_accepted"`
	OffersRejected    int64   `json:"offers_rejected"`
	RedeemsConflicted int64   `json:"redeems_conflicted"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "limit_offer_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limit_offer_requests_total",
				Help: "Total HTTP requests processed.",
			},
			[]string{"status"},
		),
		redemptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limit_offer_redemptions_total",
				Help: "Total offer redemptions by outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limit_offer_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limit_offer_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of a request against a route.
func (m *Metrics) RecordRequestDuration(route string, d time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// IncrRequest increments the request counter with a status class label
// ("success" or "error").
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrRedemption increments the redemption counter for an outcome
// ("accepted", "rejected" or "conflict").
func (m *Metrics) IncrRedemption(outcome string) {
	m.redemptions.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetSnapshot gathers current counter values for the summary endpoint.
func (m *Metrics) GetSnapshot() Snapshot {
	hits := getCounterValue(m.cacheHits, "account") + getCounterValue(m.cacheHits, "offers")
	misses := getCounterValue(m.cacheMisses, "account") + getCounterValue(m.cacheMisses, "offers")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	success := getCounterValue(m.requestsTotal, "success")
	errors := getCounterValue(m.requestsTotal, "error")

	return Snapshot{
		RequestsTotal:     int64(success + errors),
		RequestErrors:     int64(errors),
		OffersAccepted:    int64(getCounterValue(m.redemptions, "accepted")),
		OffersRejected:    int64(getCounterValue(m.redemptions, "rejected")),
		RedeemsConflicted: int64(getCounterValue(m.redemptions, "conflict")),
		CacheHitRate:      hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
