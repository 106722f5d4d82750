package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks a batch run's progress (§6), in the same promauto
// style as natesales-gpsd-exporter's package-level gauges.
type Metrics struct {
	FilesProcessed prometheus.Counter
	FilesFailed    prometheus.Counter
	LastRunUnix    prometheus.Gauge
}

// NewMetrics registers a fresh set of batch-run metrics against the
// default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		FilesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veanalyze_files_processed_total",
			Help: "Number of FIT files successfully analyzed.",
		}),
		FilesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veanalyze_files_failed_total",
			Help: "Number of FIT files that failed analysis.",
		}),
		LastRunUnix: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "veanalyze_last_run_unix",
			Help: "Unix timestamp of the last completed batch run.",
		}),
	}
}
