package services

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/temcen/storerec/internal/recommend"
	"github.com/temcen/storerec/pkg/models"
)

// DatabaseQuerier interface for database operations
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// CatalogProvider lists products with their categories. An empty filter lists
// the whole catalog.
type CatalogProvider interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
}

// RatingProvider lists review ratings. An empty filter lists every rating.
type RatingProvider interface {
	List(ctx context.Context, filter models.RatingFilter) ([]models.Rating, error)
}

// ArtifactSource hands out the cached derived artifacts, rebuilding on a miss.
type ArtifactSource interface {
	ContentIndex(ctx context.Context) (*recommend.ContentIndex, error)
	RatingMatrices(ctx context.Context) (*recommend.RatingMatrices, error)
	Products(ctx context.Context) ([]models.Product, error)
}

// ArtifactManagerInterface defines cache maintenance operations
type ArtifactManagerInterface interface {
	Invalidate(ctx context.Context, artifacts ...string) ([]string, error)
	Warm(ctx context.Context) ([]string, error)
}

// RecommendationServiceInterface defines the recommendation flows served over HTTP
type RecommendationServiceInterface interface {
	Content(ctx context.Context, productIDs []string) (*models.ContentResult, error)
	Collaborative(ctx context.Context, customerID string) (*models.CollaborativeResult, error)
	Hybrid(ctx context.Context, customerID string, productIDs []string) (*models.HybridResult, error)
	Combined(ctx context.Context, customerID string, productIDs []string) (*models.ContentResult, *models.CollaborativeResult, error)
}
