package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// PipelineMetrics exposes the scoring pipeline's Prometheus metrics.
type PipelineMetrics struct {
	RecommendationsTotal *prometheus.CounterVec
	PipelineDuration     prometheus.Histogram
	FallbackActivations  prometheus.Counter
	CacheHits            *prometheus.CounterVec
}

func NewPipelineMetrics(logger *logrus.Logger) *PipelineMetrics {
	pm := &PipelineMetrics{
		RecommendationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Recommendation responses by source and fill status",
		}, []string{"source", "status"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommendation_pipeline_duration_seconds",
			Help:    "End-to-end scoring pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
		FallbackActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recommendation_fallback_activations_total",
			Help: "Requests routed to the rule-based fallback because semantic search was missing or insufficient",
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_cache_hits_total",
			Help: "Cache hits by cache name",
		}, []string{"cache"}),
	}

	collectors := []prometheus.Collector{
		pm.RecommendationsTotal,
		pm.PipelineDuration,
		pm.FallbackActivations,
		pm.CacheHits,
	}
	for _, collector := range collectors {
		if err := prometheus.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logger.WithError(err).Warn("Failed to register pipeline metric")
			}
		}
	}

	return pm
}
