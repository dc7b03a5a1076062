package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosUploaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snapvault",
		Name:      "photos_uploaded_total",
		Help:      "Total number of photos accepted for upload",
	}, []string{"group_id"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snapvault",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected in uploaded photos",
	})

	IdentitiesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snapvault",
		Name:      "identities_created_total",
		Help:      "Total number of new identity clusters created",
	})

	IdentitiesMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snapvault",
		Name:      "identities_merged_total",
		Help:      "Total number of embeddings merged into existing clusters",
	})

	IdentitiesClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snapvault",
		Name:      "identities_claimed_total",
		Help:      "Total number of orphan clusters claimed at registration",
	})

	MatchSimilarity = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "snapvault",
		Name:      "match_similarity",
		Help:      "Cosine similarity of accepted matches",
		Buckets:   prometheus.LinearBuckets(0.6, 0.05, 8),
	})

	ExtractDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "snapvault",
		Name:      "extract_duration_seconds",
		Help:      "Duration of face detection + embedding extraction per photo",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "snapvault",
		Name:      "queue_depth",
		Help:      "Number of pending face tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "snapvault",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "snapvault",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
