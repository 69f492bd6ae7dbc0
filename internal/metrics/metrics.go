// Package metrics holds the prometheus collectors shared by the memory graph
// components. Collectors register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SectorClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strata_sector_classifications_total",
		Help: "Edges classified into a memory sector, by sector and matched rule",
	}, []string{"sector", "rule"})

	RelevanceScores = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "strata_relevance_score",
		Help:    "Distribution of computed relevance scores",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 1},
	}, []string{"sector"})

	ConsentChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strata_consent_checks_total",
		Help: "Consent gate evaluations, by outcome",
	}, []string{"outcome"})

	Reclassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strata_reclassifications_total",
		Help: "Reclassification requests, by result status",
	}, []string{"status"})

	DecayConfigFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strata_decay_config_fallbacks_total",
		Help: "Times the decay configuration fell back to built-in defaults",
	})
)
