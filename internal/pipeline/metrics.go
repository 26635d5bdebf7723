package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripwatch_frames_total",
		Help: "Total number of processed frames by output format",
	}, []string{"format"})

	frameErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripwatch_frame_errors_total",
		Help: "Total number of frames that failed to decode",
	}, []string{"reason"})

	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ripwatch_frame_duration_seconds",
		Help:    "Per-frame decode and annotate duration",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	})

	candidatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripwatch_candidates_total",
		Help: "Total number of candidates kept by the decoder",
	})

	suppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripwatch_suppressed_total",
		Help: "Total number of candidates removed by non-maximum suppression",
	})

	classOverridesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripwatch_class_overrides_total",
		Help: "Total number of class flips held back by the stabilizer",
	})

	markersDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripwatch_markers_denied_total",
		Help: "Total number of detections shown without a pointer marker",
	})

	hazardsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripwatch_hazards_total",
		Help: "Total number of hazard candidates observed",
	})

	capturesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripwatch_captures_total",
		Help: "Total number of hazard captures requested",
	})

	activeAnnotations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ripwatch_active_annotations",
		Help: "Number of annotations shown for the latest frame",
	})

	stabilizerEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ripwatch_stabilizer_entries",
		Help: "Number of slots tracked by the class stabilizer",
	})
)

func observeFrame(res *Result, tracked int) {
	framesTotal.WithLabelValues(res.Format.String()).Inc()
	frameDuration.Observe(res.Elapsed.Seconds())
	candidatesTotal.Add(float64(res.Candidates))
	suppressedTotal.Add(float64(res.Suppressed))
	classOverridesTotal.Add(float64(res.Overrides))
	markersDeniedTotal.Add(float64(res.Sync.MarkersDenied))
	hazardsTotal.Add(float64(res.Hazards))
	activeAnnotations.Set(float64(res.Count()))
	stabilizerEntries.Set(float64(tracked))
}
