package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Metrics groups the recommendation collectors. Registration is idempotent so
// several service sets can share the default registry.
type Metrics struct {
	CacheLookups          *prometheus.CounterVec
	ArtifactBuildDuration *prometheus.HistogramVec
	ArtifactBuildErrors   *prometheus.CounterVec
	RecommendationResults *prometheus.HistogramVec
	RecommendationLatency *prometheus.HistogramVec
}

func NewMetrics(logger *logrus.Logger) *Metrics {
	m := &Metrics{}

	m.CacheLookups = registerCounterVec(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_artifact_cache_lookups_total",
		Help: "Artifact cache lookups by artifact and result (hit, miss, error, corrupt)",
	}, []string{"artifact", "result"}))

	m.ArtifactBuildDuration = registerHistogramVec(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommendation_artifact_build_duration_seconds",
		Help:    "Time spent rebuilding an artifact after a cache miss",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"artifact"}))

	m.ArtifactBuildErrors = registerCounterVec(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_artifact_build_errors_total",
		Help: "Artifact rebuilds that failed",
	}, []string{"artifact"}))

	m.RecommendationResults = registerHistogramVec(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommendation_results_count",
		Help:    "Number of recommendations returned per request",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
	}, []string{"strategy"}))

	m.RecommendationLatency = registerHistogramVec(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommendation_request_duration_seconds",
		Help:    "Time spent serving a recommendation request",
		Buckets: prometheus.DefBuckets,
	}, []string{"strategy"}))

	return m
}

func registerCounterVec(logger *logrus.Logger, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		logger.WithError(err).Warn("Failed to register counter")
	}
	return c
}

func registerHistogramVec(logger *logrus.Logger, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		logger.WithError(err).Warn("Failed to register histogram")
	}
	return h
}
