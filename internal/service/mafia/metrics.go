package mafia

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "party_mafia_engine_calls_total",
		Help: "Engine operations, by operation and result code",
	}, []string{"op", "code"})

	engineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "party_mafia_engine_call_duration_seconds",
		Help:    "Engine operation latency including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "party_mafia_actions_total",
		Help: "Submitted actions, by type and outcome",
	}, []string{"type", "outcome"})

	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "party_mafia_phase_transitions_total",
		Help: "Phase transitions, by target phase",
	}, []string{"phase"})

	gamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "party_mafia_games_finished_total",
		Help: "Finished games, by win condition",
	}, []string{"condition"})
)
