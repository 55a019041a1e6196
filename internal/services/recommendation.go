package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/temcen/storerec/internal/config"
	"github.com/temcen/storerec/internal/recommend"
	"github.com/temcen/storerec/pkg/models"
)

const (
	StrategyContent       = "content"
	StrategyCollaborative = "collaborative"
	StrategyHybrid        = "hybrid"
)

// RecommendationService runs the content, collaborative and hybrid flows over
// the cached artifacts.
type RecommendationService struct {
	artifacts ArtifactSource
	ratings   RatingProvider
	content   *recommend.ContentRecommender
	collab    *recommend.CollaborativeRecommender
	hybrid    *recommend.HybridMerger
	metrics   *Metrics
	logger    *logrus.Logger
	now       func() time.Time
}

func NewRecommendationService(
	artifacts ArtifactSource,
	ratings RatingProvider,
	cfg *config.RecommendationConfig,
	metrics *Metrics,
	logger *logrus.Logger,
) *RecommendationService {
	weights := make(recommend.WeightTable, 0, len(cfg.Hybrid.Weights))
	for _, w := range cfg.Hybrid.Weights {
		weights = append(weights, recommend.WeightThreshold{
			MinReviews:    w.MinReviews,
			Collaborative: w.Collaborative,
			Content:       w.Content,
		})
	}

	return &RecommendationService{
		artifacts: artifacts,
		ratings:   ratings,
		content: recommend.NewContentRecommender(recommend.ContentOptions{
			SimilarityFloor: cfg.Content.SimilarityFloor,
			MaxResults:      cfg.Content.MaxResults,
		}),
		collab: recommend.NewCollaborativeRecommender(recommend.CollaborativeOptions{
			MinCommonProducts:  cfg.Collaborative.MinCommonProducts,
			FallbackAverage:    cfg.Collaborative.FallbackAverage,
			OutlierDeviation:   cfg.Collaborative.OutlierDeviation,
			RecommendThreshold: cfg.Collaborative.RecommendThreshold,
			MaxResults:         cfg.Collaborative.MaxResults,
		}),
		hybrid: recommend.NewHybridMerger(recommend.HybridOptions{
			Weights:    weights,
			MaxResults: cfg.Hybrid.MaxResults,
		}),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Content recommends products similar to the given ones.
func (s *RecommendationService) Content(ctx context.Context, productIDs []string) (*models.ContentResult, error) {
	start := time.Now()

	recs, err := s.contentRecommendations(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	s.observe(StrategyContent, len(recs), start)
	return &models.ContentResult{Recommendations: recs, GeneratedAt: s.now()}, nil
}

// Collaborative predicts ratings for products the customer has not reviewed.
func (s *RecommendationService) Collaborative(ctx context.Context, customerID string) (*models.CollaborativeResult, error) {
	start := time.Now()

	recs, sims, err := s.collaborativeRecommendations(ctx, customerID)
	if err != nil {
		return nil, err
	}

	s.observe(StrategyCollaborative, len(recs), start)
	return &models.CollaborativeResult{
		CustomerID:      customerID,
		Recommendations: recs,
		Similarities:    sims,
		GeneratedAt:     s.now(),
	}, nil
}

// Hybrid runs both strategies and the review count lookup concurrently and
// fuses the lists with weights chosen by how many reviews the customer wrote.
func (s *RecommendationService) Hybrid(ctx context.Context, customerID string, productIDs []string) (*models.HybridResult, error) {
	start := time.Now()

	var (
		content     []models.Recommendation
		collab      []models.CollaborativeRecommendation
		reviewCount int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		content, err = s.contentRecommendations(gctx, productIDs)
		return err
	})
	g.Go(func() error {
		var err error
		collab, _, err = s.collaborativeRecommendations(gctx, customerID)
		return err
	})
	g.Go(func() error {
		var err error
		reviewCount, err = s.ReviewCount(gctx, customerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined, stats, weights := s.hybrid.Merge(collab, content, reviewCount)

	s.logger.WithFields(logrus.Fields{
		"customer_id":   customerID,
		"review_count":  reviewCount,
		"collab_weight": weights.Collaborative,
		"collab_count":  stats.CollaborativeCount,
		"content_count": stats.ContentCount,
	}).Debug("Merged hybrid recommendations")

	s.observe(StrategyHybrid, len(combined), start)
	return &models.HybridResult{
		CustomerID:      customerID,
		Recommendations: combined,
		Stats:           stats,
		Weights:         weights,
		ReviewCount:     reviewCount,
		GeneratedAt:     s.now(),
	}, nil
}

// Combined returns both strategies' lists side by side without fusing them.
func (s *RecommendationService) Combined(ctx context.Context, customerID string, productIDs []string) (*models.ContentResult, *models.CollaborativeResult, error) {
	var (
		content *models.ContentResult
		collab  *models.CollaborativeResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		content, err = s.Content(gctx, productIDs)
		return err
	})
	g.Go(func() error {
		var err error
		collab, err = s.Collaborative(gctx, customerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return content, collab, nil
}

// ReviewCount is the number of reviews the customer has written.
func (s *RecommendationService) ReviewCount(ctx context.Context, customerID string) (int, error) {
	reviews, err := s.ratings.List(ctx, models.RatingFilter{CustomerIDs: []string{customerID}})
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews for %s: %w", customerID, err)
	}
	return len(reviews), nil
}

func (s *RecommendationService) contentRecommendations(ctx context.Context, productIDs []string) ([]models.Recommendation, error) {
	if len(productIDs) == 0 {
		return []models.Recommendation{}, nil
	}

	index, err := s.artifacts.ContentIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("content recommendations: %w", err)
	}
	return s.content.Recommend(productIDs, index), nil
}

func (s *RecommendationService) collaborativeRecommendations(ctx context.Context, customerID string) ([]models.CollaborativeRecommendation, map[string]float64, error) {
	m, err := s.artifacts.RatingMatrices(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("collaborative recommendations: %w", err)
	}

	sims := s.collab.Similarities(customerID, m)
	predictions := s.collab.Predict(customerID, sims, m)
	if len(predictions) == 0 {
		return []models.CollaborativeRecommendation{}, sims, nil
	}

	products, err := s.artifacts.Products(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("collaborative recommendations: %w", err)
	}
	return recommend.ResolvePredictions(predictions, products), sims, nil
}

func (s *RecommendationService) observe(strategy string, results int, start time.Time) {
	s.metrics.RecommendationResults.WithLabelValues(strategy).Observe(float64(results))
	s.metrics.RecommendationLatency.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}
