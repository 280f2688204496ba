package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Call outcomes recorded per upstream dependency.
const (
	outcomeOK             = "ok"
	outcomeError          = "error"
	outcomeShortCircuited = "short_circuited"
)

// unnamedDependency labels breakers built without a Settings.Name.
const unnamedDependency = "unnamed"

var (
	dependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "trustx",
		Subsystem: "dependency",
		Name:      "available",
		Help:      "Whether calls to an upstream dependency (page-fetch, openai, registry-web, postgres) are let through: 1 healthy, 0.5 trial call only, 0 short-circuited",
	}, []string{"dependency"})

	dependencyCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustx",
		Subsystem: "dependency",
		Name:      "calls_total",
		Help:      "Calls made to an upstream dependency such as the page fetcher, OpenAI, the SEBI registry site or Postgres, by outcome",
	}, []string{"dependency", "outcome"})

	dependencyTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustx",
		Subsystem: "dependency",
		Name:      "availability_changes_total",
		Help:      "Times an upstream dependency moved between healthy, trial and short-circuited",
	}, []string{"dependency", "to"})
)

// dependencyMetrics records call outcomes for one guarded dependency.
type dependencyMetrics struct {
	dependency string
	calls      *prometheus.CounterVec
}

func newDependencyMetrics(dependency string) dependencyMetrics {
	if dependency == "" {
		dependency = unnamedDependency
	}
	return dependencyMetrics{
		dependency: dependency,
		calls:      dependencyCalls.MustCurryWith(prometheus.Labels{"dependency": dependency}),
	}
}

func (m dependencyMetrics) observe(outcome string) {
	m.calls.WithLabelValues(outcome).Inc()
}

func (m dependencyMetrics) availability(state gobreaker.State) {
	dependencyUp.WithLabelValues(m.dependency).Set(availabilityOf(state))
}

func (m dependencyMetrics) transition(to gobreaker.State) {
	dependencyTransitions.WithLabelValues(m.dependency, to.String()).Inc()
	m.availability(to)
}

func availabilityOf(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
