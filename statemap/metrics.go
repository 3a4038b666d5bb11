package statemap

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stateboard",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Join-and-label runs by initiative and result.",
		},
		[]string{"initiative", "result"}, // ok|missing_columns|row_count|error
	)

	PipelineRunSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stateboard",
			Subsystem: "pipeline",
			Name:      "run_seconds",
			Help:      "Time to join, place labels and render one initiative.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"initiative"},
	)

	CoverageMissingRegions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stateboard",
			Subsystem: "join",
			Name:      "missing_regions",
			Help:      "Geometry regions without a matching attribute row in the last run.",
		},
		[]string{"initiative"},
	)

	LabelsPlaced = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stateboard",
			Subsystem: "labels",
			Name:      "placed",
			Help:      "Labels placed in the last run.",
		},
		[]string{"initiative"},
	)

	SourceReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stateboard",
			Subsystem: "cache",
			Name:      "reloads_total",
			Help:      "Explicit source reloads by result.",
		},
		[]string{"result"}, // ok|error
	)

	SnapshotsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stateboard",
			Subsystem: "mqtt",
			Name:      "snapshots_published_total",
			Help:      "Snapshot publishes by result.",
		},
		[]string{"result"}, // ok|error|skipped
	)
)

var regOnce sync.Once

// MustRegisterMetrics registers all collectors with the default registry
// exactly once.
func MustRegisterMetrics() {
	regOnce.Do(func() {
		prometheus.MustRegister(
			PipelineRunsTotal,
			PipelineRunSeconds,
			CoverageMissingRegions,
			LabelsPlaced,
			SourceReloadsTotal,
			SnapshotsPublishedTotal,
		)
	})
}
