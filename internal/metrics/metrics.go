package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsbot_turns_total",
			Help: "Inbound conversation turns by outcome",
		},
		[]string{"outcome"}, // replied|suppressed|optout|error
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsbot_status_transitions_total",
			Help: "Lead status transitions by from/to status",
		},
		[]string{"from", "to"},
	)

	AIFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsbot_ai_failures_total",
			Help: "LLM call failures by stage",
		},
		[]string{"stage"}, // classify|generate
	)

	FollowUpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsbot_followups_total",
			Help: "Follow-up nudges by stage",
		},
		[]string{"stage"}, // 1|2|3
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		TurnsTotal,
		TransitionsTotal,
		AIFailuresTotal,
		FollowUpsTotal,
	)
}
