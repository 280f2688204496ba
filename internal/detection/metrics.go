package detection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustx",
		Name:      "analyses_total",
		Help:      "Completed analyses by input kind and risk level",
	}, []string{"input_kind", "risk_level"})

	extractorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustx",
		Name:      "extractor_failures_total",
		Help:      "Extractor runs that failed, timed out or panicked",
	}, []string{"signal"})

	extractorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trustx",
		Name:      "extractor_duration_seconds",
		Help:      "Time spent in each extractor",
		Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"signal"})
)
