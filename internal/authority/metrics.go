package authority

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Authority's operational counters, exposed on /metrics.
// Billing and dashboards are out of scope; these are ambient observability
// counters only (lease grants, renewals, fork rejections, verify outcomes).
type Metrics struct {
	LeaseAcquires    *prometheus.CounterVec
	LeaseRenewals    prometheus.Counter
	LeaseReleases    prometheus.Counter
	ForkRejections   prometheus.Counter
	StateAppends     prometheus.Counter
	VerifyOutcomes   *prometheus.CounterVec
	AgentsRegistered prometheus.Counter
	RateLimited      prometheus.Counter
}

// NewMetrics registers every counter on reg and returns the handle. Callers
// typically pass prometheus.NewRegistry() so tests don't collide on the
// default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LeaseAcquires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigaid",
			Subsystem: "authority",
			Name:      "lease_acquires_total",
			Help:      "Lease acquire attempts by outcome.",
		}, []string{"outcome"}),
		LeaseRenewals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigaid",
			Subsystem: "authority",
			Name:      "lease_renewals_total",
			Help:      "Successful lease renewals.",
		}),
		LeaseReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigaid",
			Subsystem: "authority",
			Name:      "lease_releases_total",
			Help:      "Lease release calls, successful or idempotent no-op.",
		}),
		ForkRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigaid",
			Subsystem: "authority",
			Name:      "state_fork_rejections_total",
			Help:      "State appends rejected as forks.",
		}),
		StateAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigaid",
			Subsystem: "authority",
			Name:      "state_appends_total",
			Help:      "Successful state chain appends.",
		}),
		VerifyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigaid",
			Subsystem: "authority",
			Name:      "verify_outcomes_total",
			Help:      "Proof verification outcomes by reason code (empty for valid).",
		}, []string{"reason"}),
		AgentsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigaid",
			Subsystem: "authority",
			Name:      "agents_registered_total",
			Help:      "Agent registrations accepted.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigaid",
			Subsystem: "authority",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-agent rate limiter.",
		}),
	}
	reg.MustRegister(m.LeaseAcquires, m.LeaseRenewals, m.LeaseReleases, m.ForkRejections,
		m.StateAppends, m.VerifyOutcomes, m.AgentsRegistered, m.RateLimited)
	return m
}
