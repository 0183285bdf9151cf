package analyses

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatrust_analyses_total",
		Help: "Archived analyses by verdict.",
	}, []string{"verdict"})

	analysisFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatrust_analysis_failures_total",
		Help: "Failed analyses by pipeline stage.",
	}, []string{"stage"})

	detectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediatrust_detector_duration_seconds",
		Help:    "Time spent in a single detector call.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"detector"})

	notifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatrust_notify_failures_total",
		Help: "analysis.created notifications that could not be delivered.",
	})
)

// pipeline stages used as failure labels
const (
	stageValidate  = "validate"
	stageDetect    = "detect"
	stageAggregate = "aggregate"
	stageUpload    = "upload"
	stagePersist   = "persist"
	stageCancelled = "cancelled"
)
