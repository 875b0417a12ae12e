package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/hollow/internal/solver"
)

var (
	// passTotal counts engine calls by action and result
	passTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hollow_engine_pass_total",
		Help: "Engine passes by action and result",
	}, []string{"action", "result"})

	// passDuration tracks pass latency including solver time
	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hollow_engine_pass_duration_seconds",
		Help:    "Engine pass duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	}, []string{"action"})

	// passVisits tracks worklist visits per pass
	passVisits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hollow_engine_pass_visits",
		Help:    "Dependents visited per propagation pass",
		Buckets: []float64{0, 1, 2, 5, 10, 50, 100, 1000, 10000},
	})

	// holeOutcomes counts per-dependent propagation outcomes
	holeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hollow_engine_hole_outcomes_total",
		Help: "Propagation outcomes per dependent hole",
	}, []string{"outcome"})

	// solverChecks counts oracle queries by status
	solverChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hollow_solver_checks_total",
		Help: "Solver queries by result status",
	}, []string{"status"})
)

// Outcome labels for holeOutcomes.
const (
	outcomeRefined    = "refined"
	outcomeAutoFilled = "auto_filled"
	outcomeConflicted = "conflicted"
	outcomeUnverified = "unverified"
	outcomeUnchanged  = "unchanged"
)

func observeCheck(r solver.Result) {
	solverChecks.WithLabelValues(r.Status.String()).Inc()
}
