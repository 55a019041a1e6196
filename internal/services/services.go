package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/internal/cache"
	"github.com/temcen/storerec/internal/config"
	"github.com/temcen/storerec/internal/database"
)

type Services struct {
	Auth            *AuthService
	Health          *HealthService
	Metrics         *Metrics
	Cache           cache.Store
	Artifacts       *ArtifactService
	Recommendations *RecommendationService
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	store, err := cache.New(&cfg.Cache, db.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact cache: %w", err)
	}

	metrics := NewMetrics(logger)
	catalog := NewPGCatalogProvider(db.PG, logger)
	ratings := NewPGRatingProvider(db.PG, logger)

	artifacts := NewArtifactService(catalog, ratings, store, &cfg.Cache, &cfg.Recommendation.Content, metrics, logger)
	recommendations := NewRecommendationService(artifacts, ratings, &cfg.Recommendation, metrics, logger)

	return &Services{
		Auth:            NewAuthService(&cfg.Auth, logger),
		Health:          NewHealthService(db.PG, store, logger),
		Metrics:         metrics,
		Cache:           store,
		Artifacts:       artifacts,
		Recommendations: recommendations,
	}, nil
}
