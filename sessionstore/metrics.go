package sessionstore

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	reaped       prometheus.Counter
	reapFailures prometheus.Counter
	expiredReads prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessions_reaped_total",
			Help: "Number of expired sessions deleted by the reap sweep.",
		}),
		reapFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessions_reap_failures_total",
			Help: "Number of reap sweeps abandoned because the table scan failed.",
		}),
		expiredReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessions_expired_reads_total",
			Help: "Number of reads that found an expired session.",
		}),
	}
	if reg != nil {
		m.reaped = register(reg, m.reaped)
		m.reapFailures = register(reg, m.reapFailures)
		m.expiredReads = register(reg, m.expiredReads)
	}
	return m
}

// register registers c, or returns the matching counter if one is
// already registered by another store.
func register(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return c
}
