package publish

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	cocometrics "github.com/infinilabs/cococi/pkg/metrics"
)

var (
	pollsTotal = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: cocometrics.Namespace,
		Subsystem: "publish",
		Name:      "polls_total",
		Help:      "Count of deployment status checks, by reported state.",
	}, []string{cocometrics.LabelState})

	// Validation of a typical bundle takes a minute or two; publishing
	// to the mirrors can take considerably longer.
	publishDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: cocometrics.Namespace,
		Subsystem: "publish",
		Name:      "duration_seconds",
		Help:      "Duration of a publish run from upload to terminal outcome, in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 180, 300, 450, 600, 900},
	}, []string{cocometrics.LabelOutcome})

	dropsTotal = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: cocometrics.Namespace,
		Subsystem: "publish",
		Name:      "drops_total",
		Help:      "Count of deployment drops attempted.",
	}, []string{cocometrics.LabelSuccess})
)
