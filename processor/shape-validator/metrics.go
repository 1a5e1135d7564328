package shapevalidator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation metrics, labelled by schema name.
var (
	resourcesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "semlink",
		Subsystem: "shape_validator",
		Name:      "resources_processed_total",
		Help:      "Resources consumed from the ingest stream.",
	}, []string{"schema"})

	resourcesValid = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "semlink",
		Subsystem: "shape_validator",
		Name:      "resources_valid_total",
		Help:      "Resources that passed shape validation.",
	}, []string{"schema"})

	resourcesInvalid = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "semlink",
		Subsystem: "shape_validator",
		Name:      "resources_invalid_total",
		Help:      "Resources rejected by shape validation.",
	}, []string{"schema"})

	validationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "semlink",
		Subsystem: "shape_validator",
		Name:      "validation_duration_seconds",
		Help:      "Time spent validating one resource.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"schema"})
)
