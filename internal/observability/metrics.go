package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the backend records. Register one set
// per process; tests build theirs against a private registry.
type Metrics struct {
	VideosChunked  prometheus.Counter
	VideosEmbedded prometheus.Counter
	ChunksEmbedded prometheus.Counter
	BackfillErrors *prometheus.CounterVec
	VideoDuration  *prometheus.HistogramVec
	EmbedLatency   prometheus.Histogram

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ActiveSessions  prometheus.Gauge
	TokensStreamed  prometheus.Counter
	RetrievalMisses prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		VideosChunked: factory.NewCounter(prometheus.CounterOpts{
			Name: "backfill_videos_chunked_total",
			Help: "Videos that completed the chunk step.",
		}),
		VideosEmbedded: factory.NewCounter(prometheus.CounterOpts{
			Name: "backfill_videos_embedded_total",
			Help: "Videos that completed the embed step.",
		}),
		ChunksEmbedded: factory.NewCounter(prometheus.CounterOpts{
			Name: "backfill_chunks_embedded_total",
			Help: "Chunks that received an embedding.",
		}),
		BackfillErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backfill_errors_total",
			Help: "Per-video backfill failures by step and reason.",
		}, []string{"step", "reason"}),
		VideoDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backfill_video_duration_seconds",
			Help:    "Wall time to process one video in one step.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"step"}),
		EmbedLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "backfill_infinity_latency_seconds",
			Help:    "Latency of embedding batches against the Infinity server.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ActiveRequests: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "HTTP requests currently in flight by method and route.",
		}, []string{"method", "route"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "Currently open chat WebSocket sessions.",
		}),
		TokensStreamed: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_tokens_streamed_total",
			Help: "Token frames proxied to chat clients.",
		}),
		RetrievalMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_retrieval_misses_total",
			Help: "Chat turns answered without retrieved context.",
		}),
	}
}
