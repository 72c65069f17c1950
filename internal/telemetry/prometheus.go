package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink exports cache events as Prometheus counters labeled by
// instance name.
type PrometheusSink struct {
	hits    *prometheus.CounterVec
	misses  *prometheus.CounterVec
	swept   *prometheus.CounterVec
	evicted *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	labels := []string{"instance"}

	return &PrometheusSink{
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evecache",
			Name:      "hits_total",
			Help:      "Cache lookups served from a live entry.",
		}, labels),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evecache",
			Name:      "misses_total",
			Help:      "Cache lookups that found no live entry.",
		}, labels),
		swept: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evecache",
			Name:      "sweep_purged_total",
			Help:      "Expired entries purged by background sweeps.",
		}, labels),
		evicted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evecache",
			Name:      "evicted_total",
			Help:      "Entries evicted to respect the instance size bound.",
		}, labels),
	}
}

func (s *PrometheusSink) OnAccess(instance string, hit bool) {
	if hit {
		s.hits.WithLabelValues(instance).Inc()
	} else {
		s.misses.WithLabelValues(instance).Inc()
	}
}

func (s *PrometheusSink) OnSweep(instance string, purged int) {
	if purged > 0 {
		s.swept.WithLabelValues(instance).Add(float64(purged))
	}
}

func (s *PrometheusSink) OnEvict(instance string, evicted int) {
	if evicted > 0 {
		s.evicted.WithLabelValues(instance).Add(float64(evicted))
	}
}
