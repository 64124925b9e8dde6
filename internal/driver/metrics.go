package driver

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	compilations  *prometheus.CounterVec
	cacheHits     prometheus.Counter
	inflightWaits prometheus.Counter
}

// newMetrics creates the driver's counters and registers them with reg,
// if reg is not nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		compilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brutus_compilations_total",
				Help: "Finished compilations by outcome (ready or the failure kind)",
			}, []string{"outcome"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "brutus_cache_hits_total",
				Help: "Requests answered from a finished cache entry",
			},
		),
		inflightWaits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "brutus_inflight_waits_total",
				Help: "Requests that joined a compilation already in flight",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.compilations, m.cacheHits, m.inflightWaits)
	}
	return m
}
