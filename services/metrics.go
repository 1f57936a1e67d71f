package services

import "github.com/prometheus/client_golang/prometheus"

var (
	awardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_awards_total",
			Help: "Point awards by event kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	levelUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gamification_level_ups_total",
			Help: "Awards that advanced a user's level",
		},
	)
	badgesAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamification_badges_awarded_total",
			Help: "Badges granted by badge id",
		},
		[]string{"badge"},
	)
	reconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadership_reconciliations_total",
			Help: "Leadership reconciliation passes by outcome",
		},
		[]string{"outcome"},
	)
	reconcileJobsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leadership_reconcile_jobs_dropped_total",
			Help: "Reconciliation jobs dropped because the queue was full",
		},
	)
)

const (
	outcomeAwarded = "awarded"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"

	outcomeLeaderChanged   = "leader_changed"
	outcomeLeaderUnchanged = "leader_unchanged"
	outcomeNoMembers       = "no_members"
	outcomeIgnored         = "ignored"
)

// RegisterMetrics registers the gamification collectors. Call this from main.go
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(awardsTotal)
	reg.MustRegister(levelUpsTotal)
	reg.MustRegister(badgesAwardedTotal)
	reg.MustRegister(reconciliationsTotal)
	reg.MustRegister(reconcileJobsDropped)
}
