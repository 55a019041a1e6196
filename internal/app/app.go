package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/internal/config"
	"github.com/temcen/storerec/internal/database"
	"github.com/temcen/storerec/internal/handlers"
	"github.com/temcen/storerec/internal/messaging"
	"github.com/temcen/storerec/internal/middleware"
	"github.com/temcen/storerec/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
	consumer *messaging.InvalidationConsumer

	cancelConsumer context.CancelFunc
	consumerDone   chan struct{}
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Initialize services
	services, err := services.New(cfg, app.logger, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	if cfg.Kafka.Enabled {
		consumer, err := messaging.NewInvalidationConsumer(&cfg.Kafka, services.Artifacts, app.logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize catalog event consumer: %w", err)
		}
		app.consumer = consumer
	}

	// Initialize handlers
	app.handlers = handlers.New(app.logger, services)

	// Setup router
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Start launches the catalog event consumer when Kafka is enabled.
func (a *App) Start() {
	if a.consumer == nil {
		a.logger.Info("Kafka disabled, artifacts expire by TTL only")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelConsumer = cancel
	a.consumerDone = make(chan struct{})

	go func() {
		defer close(a.consumerDone)
		a.logger.WithField("topic", a.config.Kafka.Topics.CatalogEvents).Info("Catalog event consumer started")
		if err := a.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WithError(err).Error("Catalog event consumer stopped")
		}
	}()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.consumer != nil {
		if a.cancelConsumer != nil {
			a.cancelConsumer()
			select {
			case <-a.consumerDone:
			case <-ctx.Done():
				a.logger.Warn("Timed out waiting for catalog event consumer")
			}
		}
		a.logger.WithField("stats", a.consumer.Stats()).Info("Catalog event consumer stopped")
		if err := a.consumer.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing catalog event consumer")
		}
	}

	if closer, ok := a.services.Cache.(interface{ Close() }); ok {
		closer.Close()
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(&a.config.Security.CORS))

	// Health check endpoint (no auth required)
	router.GET("/health", a.handlers.Health.Check)

	// Prometheus metrics endpoint (no auth required)
	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	{
		recommendations := api.Group("/recommendations")
		{
			recommendations.POST("", a.handlers.Recommendation.Combined)
			recommendations.POST("/content", a.handlers.Recommendation.Content)
			recommendations.POST("/collaborative", a.handlers.Recommendation.Collaborative)
			recommendations.POST("/hybrid", a.handlers.Recommendation.Hybrid)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuth(a.services.Auth, a.logger))
		{
			admin.POST("/cache/invalidate", a.handlers.Admin.InvalidateCache)
			admin.POST("/cache/warm", a.handlers.Admin.WarmCache)
		}
	}

	a.router = router
}
