package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/internal/cache"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	db      Pinger
	store   cache.Store
	logger  *logrus.Logger
	timeout time.Duration

	// Prometheus metrics
	healthCheckStatus *prometheus.GaugeVec
	lastHealthCheck   *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
}

func NewHealthService(db Pinger, store cache.Store, logger *logrus.Logger) *HealthService {
	hs := &HealthService{
		db:      db,
		store:   store,
		logger:  logger,
		timeout: 5 * time.Second,
	}

	hs.healthCheckStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"})

	hs.lastHealthCheck = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_timestamp",
		Help: "Timestamp of last health check",
	}, []string{"service"})

	// Register metrics with error handling - reuse if already registered
	if err := prometheus.Register(hs.healthCheckStatus); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			hs.healthCheckStatus = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			logger.WithError(err).Warn("Failed to register health_check_status metric")
		}
	}
	if err := prometheus.Register(hs.lastHealthCheck); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			hs.lastHealthCheck = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			logger.WithError(err).Warn("Failed to register health_check_timestamp metric")
		}
	}

	return hs
}

// CheckHealth reports unhealthy when the catalog database is down. A failing
// cache only degrades the service since artifacts can still be rebuilt.
func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	allCriticalHealthy := true
	if err := s.check(ctx, s.db); err != nil {
		status.Services["postgresql"] = "unhealthy"
		status.Critical = append(status.Critical, "postgresql")
		allCriticalHealthy = false
		s.logger.WithError(err).Error("Critical service postgresql is unhealthy")
		s.UpdateHealthMetrics("postgresql", false)
	} else {
		status.Services["postgresql"] = "healthy"
		s.UpdateHealthMetrics("postgresql", true)
	}

	if err := s.check(ctx, s.store); err != nil {
		status.Services["cache"] = "unhealthy"
		status.NonCritical = append(status.NonCritical, "cache")
		s.logger.WithError(err).Warn("Non-critical service cache is unhealthy")
		s.UpdateHealthMetrics("cache", false)
	} else {
		status.Services["cache"] = "healthy"
		s.UpdateHealthMetrics("cache", true)
	}

	// Overall status
	if allCriticalHealthy {
		if len(status.NonCritical) == 0 {
			status.Status = "healthy"
		} else {
			status.Status = "degraded"
		}
	} else {
		status.Status = "unhealthy"
	}

	return status
}

func (s *HealthService) check(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return p.Ping(ctx)
}

// UpdateHealthMetrics updates health check metrics
func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}
