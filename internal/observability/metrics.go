package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bw",
		Name:      "uploads_total",
		Help:      "Video uploads by terminal state",
	}, []string{"outcome"})

	ThumbnailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bw",
		Name:      "thumbnails_total",
		Help:      "Thumbnail extraction attempts by result",
	}, []string{"result"})

	BlobOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bw",
		Name:      "blob_op_duration_seconds",
		Help:      "Duration of blob store operations",
		Buckets:   prometheus.ExponentialBuckets(0.002, 2, 12),
	}, []string{"op"})

	IntegrityViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bw",
		Name:      "integrity_violations_total",
		Help:      "Records found pointing at missing blobs",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bw",
		Name:      "inference_duration_seconds",
		Help:      "Duration of predict stages",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bw",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bw",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	SweptBlobs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bw",
		Name:      "swept_blobs_total",
		Help:      "Orphaned blobs removed by the sweeper",
	})
)
