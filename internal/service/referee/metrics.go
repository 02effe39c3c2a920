package referee

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "party_referee_detections_total",
		Help: "Analyses performed, by severity level",
	}, []string{"severity"})

	indicatorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "party_referee_indicators_total",
		Help: "Cheat indicators raised, by indicator",
	}, []string{"indicator"})
)
