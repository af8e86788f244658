package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded per provider call.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
	OutcomeLate  = "late" // finished after the race was decided
)

// Recorder exposes the resolver's Prometheus metrics. All methods are safe on a
// nil *Recorder so callers can run with metrics disabled.
type Recorder struct {
	registry         *prometheus.Registry
	providerRequests *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	resolveDuration  *prometheus.HistogramVec
	raceWinners      *prometheus.CounterVec
	cacheEntries     *prometheus.GaugeVec
}

// NewRecorder registers the metrics on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soullyrics_provider_requests_total",
			Help: "Provider calls by pipeline stage and outcome.",
		}, []string{"provider", "stage", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soullyrics_cache_lookups_total",
			Help: "Cache lookups by result (synced, unsynced, miss).",
		}, []string{"result"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "soullyrics_resolve_duration_seconds",
			Help:    "Time to resolve lyrics, labelled by the stage that produced the result.",
			Buckets: []float64{.005, .05, .25, .5, 1, 2, 4, 8, 16},
		}, []string{"stage"}),
		raceWinners: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soullyrics_race_winner_total",
			Help: "Synced races won per provider.",
		}, []string{"provider"}),
		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soullyrics_cache_entries",
			Help: "Cached entries by kind (synced, unsynced, stale).",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(
		r.providerRequests,
		r.cacheLookups,
		r.resolveDuration,
		r.raceWinners,
		r.cacheEntries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ProviderRequest(provider, stage, outcome string) {
	if r == nil {
		return
	}
	r.providerRequests.WithLabelValues(provider, stage, outcome).Inc()
}

func (r *Recorder) CacheLookup(result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) ObserveResolve(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.resolveDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) RaceWinner(provider string) {
	if r == nil {
		return
	}
	r.raceWinners.WithLabelValues(provider).Inc()
}

func (r *Recorder) setCacheEntries(stats *CacheStats) {
	if r == nil || stats == nil {
		return
	}
	r.cacheEntries.WithLabelValues("synced").Set(float64(stats.Synced))
	r.cacheEntries.WithLabelValues("unsynced").Set(float64(stats.Unsynced))
	r.cacheEntries.WithLabelValues("stale").Set(float64(stats.Stale))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
