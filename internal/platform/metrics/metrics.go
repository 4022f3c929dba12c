// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TickSessions counts per-session scheduler outcomes.
	// Labels: scheduler (timed, reaction), outcome (ok, error)
	TickSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crucible",
		Subsystem: "scheduler",
		Name:      "tick_sessions_total",
		Help:      "Per-session scheduler tick outcomes",
	}, []string{"scheduler", "outcome"})

	// InjectsPublished counts committed inject publications.
	// Labels: origin (scripted, generated), scope (universal, role_specific, team_specific)
	InjectsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crucible",
		Subsystem: "publisher",
		Name:      "injects_published_total",
		Help:      "Total injects committed to session event histories",
	}, []string{"origin", "scope"})

	// InjectsCancelled counts scripted injects suppressed before delivery.
	InjectsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crucible",
		Subsystem: "publisher",
		Name:      "injects_cancelled_total",
		Help:      "Total scripted injects cancelled before publication",
	})

	// OracleFailures counts degraded oracle calls by capability.
	// Labels: capability (classify, cancel, escalation, impact, generate)
	OracleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crucible",
		Subsystem: "oracle",
		Name:      "failures_total",
		Help:      "Total failed generative-oracle calls by capability",
	}, []string{"capability"})
)

// Handler returns the HTTP handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
