package fingerprint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fingerprintsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trustx",
	Name:      "fingerprints_total",
	Help:      "Fingerprint log attempts by outcome",
}, []string{"outcome"})
