package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripwatch_observer_requests_total",
		Help: "Observer HTTP requests by method, path and status",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ripwatch_observer_request_duration_seconds",
		Help:    "Observer HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	snapshotsThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripwatch_snapshots_throttled_total",
		Help: "Snapshot requests rejected by the per-client limiter",
	})

	snapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ripwatch_snapshot_compose_duration_seconds",
		Help:    "Time spent composing annotations over the current frame",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
	})

	framesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripwatch_frames_published_total",
		Help: "Frame results handed to observers",
	})

	observersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ripwatch_observers_connected",
		Help: "Connected websocket observers",
	})

	// direction is sent, received or dropped.
	observerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripwatch_observer_messages_total",
		Help: "Websocket messages by direction",
	}, []string{"direction"})
)
