package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's prometheus collectors. Recording failures are
// impossible by construction; counters never affect the primary request.
type Metrics struct {
	Requests      *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	RateLimited   *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
	StreamChunks  prometheus.Counter
	ProviderCalls *prometheus.HistogramVec
}

// New registers the gateway collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Completion requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_cache_hits_total",
			Help: "Completions served from the cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_cache_misses_total",
			Help: "Completions that had to invoke a backend.",
		}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests rejected by the per-provider token bucket.",
		}, []string{"provider"}),
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_fallbacks_total",
			Help: "Requests answered with the static circuit-open fallback.",
		}, []string{"provider"}),
		StreamChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_stream_chunks_total",
			Help: "Chunks emitted across all streams.",
		}),
		ProviderCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_provider_call_seconds",
			Help:    "Backend call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
