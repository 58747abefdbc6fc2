package snapshot

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	cocometrics "github.com/infinilabs/cococi/pkg/metrics"
)

const (
	opExport = "export"
	opImport = "import"
)

var documentsTotal = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
	Namespace: cocometrics.Namespace,
	Subsystem: "snapshot",
	Name:      "documents_total",
	Help:      "Count of documents written to or loaded from snapshots.",
}, []string{cocometrics.LabelOperation})
