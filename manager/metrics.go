package manager

import "github.com/prometheus/client_golang/prometheus"

// Metrics are ambient instrumentation (SPEC_FULL.md §2/§3): carried
// regardless of which spec.md Non-goal excludes fault tolerance, the
// same way the teacher's stats package is always wired in independent
// of which xactions happen to be running.
type Metrics struct {
	RegistrySize     prometheus.Gauge
	PendingRequests  prometheus.Counter
	RequestsTotal    *prometheus.CounterVec
	RegisteredTotal  prometheus.Counter
	DeregisteredTotal prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "muscore", Subsystem: "manager", Name: "registry_size",
			Help: "Number of instances currently registered with the manager.",
		}),
		PendingRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "muscore", Subsystem: "manager", Name: "request_peers_pending_total",
			Help: "Number of RequestPeers calls answered with PENDING.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "muscore", Subsystem: "manager", Name: "requests_total",
			Help: "Manager RPC calls by operation.",
		}, []string{"op"}),
		RegisteredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "muscore", Subsystem: "manager", Name: "registered_total",
			Help: "Successful RegisterInstance calls.",
		}),
		DeregisteredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "muscore", Subsystem: "manager", Name: "deregistered_total",
			Help: "DeregisterInstance calls.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RegistrySize, m.PendingRequests, m.RequestsTotal, m.RegisteredTotal, m.DeregisteredTotal)
	}
	return m
}
