// Package observability exposes prometheus metrics for the detection
// pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DetectionsTotal counts detection calls, labeled by outcome.
	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dronewatch_detections_total",
		Help: "Number of detection calls by outcome (positive, negative, error).",
	}, []string{"outcome"})

	// SimulatedLocalizationsTotal counts simulated-position fallbacks taken
	// when fewer than three channels were available.
	SimulatedLocalizationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dronewatch_simulated_localizations_total",
		Help: "Number of positive detections localized with the simulated fallback.",
	})

	// TDOAClampedTotal counts delays rejected by the physical plausibility
	// bound and clamped to zero.
	TDOAClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dronewatch_tdoa_clamped_total",
		Help: "Number of TDOA values clamped to zero as physically implausible.",
	})

	// OutOfBoundsPositionTotal counts solver results replaced by the
	// default point.
	OutOfBoundsPositionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dronewatch_out_of_bounds_positions_total",
		Help: "Number of solved positions replaced by the default point.",
	})

	// FeatureExtractionSeconds observes extraction latency.
	FeatureExtractionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dronewatch_feature_extraction_seconds",
		Help:    "Duration of spectral feature extraction.",
		Buckets: prometheus.DefBuckets,
	})

	// SegmentsScannedTotal counts windows evaluated by the segment scanner.
	SegmentsScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dronewatch_segments_scanned_total",
		Help: "Number of long-audio segments classified.",
	})
)

// Handler returns the HTTP handler serving the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
