package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/storerec/internal/config"
	"github.com/temcen/storerec/internal/recommend"
	"github.com/temcen/storerec/pkg/models"
)

type brokenArtifacts struct {
	err error
}

func (b brokenArtifacts) ContentIndex(context.Context) (*recommend.ContentIndex, error) {
	return nil, b.err
}

func (b brokenArtifacts) RatingMatrices(context.Context) (*recommend.RatingMatrices, error) {
	return nil, b.err
}

func (b brokenArtifacts) Products(context.Context) ([]models.Product, error) {
	return nil, b.err
}

func newTestRecommendations(t *testing.T) (*RecommendationService, *fakeCatalog, *fakeRatings) {
	t.Helper()
	catalog := &fakeCatalog{products: catalogFixture()}
	ratings := &fakeRatings{ratings: ratingsFixture()}
	artifacts := newTestArtifacts(t, catalog, ratings, nil)
	logger := testLogger()
	return NewRecommendationService(artifacts, ratings, &config.RecommendationConfig{}, NewMetrics(logger), logger), catalog, ratings
}

func productIDs(recs []models.Recommendation) []string {
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.ProductID
	}
	return out
}

func TestRecommendationService_Content(t *testing.T) {
	svc, _, _ := newTestRecommendations(t)
	ctx := context.Background()

	result, err := svc.Content(ctx, []string{"prod_1"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Recommendations)
	assert.False(t, result.GeneratedAt.IsZero())

	first := result.Recommendations[0]
	assert.Equal(t, "prod_2", first.ProductID)
	require.NotNil(t, first.MatchLevel)
	assert.Equal(t, 0, *first.MatchLevel)
	assert.Equal(t, "Road running shoe", first.Product.Title)

	ids := productIDs(result.Recommendations)
	assert.NotContains(t, ids, "prod_1")
	assert.NotContains(t, ids, "prod_4")

	empty, err := svc.Content(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty.Recommendations)
	assert.Empty(t, empty.Recommendations)

	unknown, err := svc.Content(ctx, []string{"prod_missing"})
	require.NoError(t, err)
	assert.Empty(t, unknown.Recommendations)
}

func TestRecommendationService_Collaborative(t *testing.T) {
	svc, catalog, _ := newTestRecommendations(t)
	ctx := context.Background()

	result, err := svc.Collaborative(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "X", result.CustomerID)
	assert.Contains(t, result.Similarities, "Y")
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "prod_3", result.Recommendations[0].ProductID)
	assert.Equal(t, 3.17, result.Recommendations[0].Prediction)
	assert.Equal(t, "Rain jacket", result.Recommendations[0].Product.Title)
	assert.Equal(t, int32(1), catalog.calls.Load())

	stranger, err := svc.Collaborative(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, stranger.Recommendations)
	assert.Empty(t, stranger.Recommendations)
	assert.Empty(t, stranger.Similarities)
}

func TestRecommendationService_Hybrid(t *testing.T) {
	svc, _, _ := newTestRecommendations(t)

	result, err := svc.Hybrid(context.Background(), "X", []string{"prod_1"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ReviewCount)
	assert.Equal(t, models.HybridWeights{Collaborative: 0.3, Content: 0.7}, result.Weights)
	assert.Equal(t, 1, result.Stats.CollaborativeCount)
	assert.GreaterOrEqual(t, result.Stats.ContentCount, 1)

	byID := make(map[string]models.CombinedRecommendation)
	for _, rec := range result.Recommendations {
		byID[rec.ProductID] = rec
	}
	require.Contains(t, byID, "prod_3")
	require.Contains(t, byID, "prod_2")

	jacket := byID["prod_3"]
	require.NotNil(t, jacket.CollaborativeScore)
	assert.InDelta(t, (3.17-1)/4, *jacket.CollaborativeScore, 1e-12)

	shoe := byID["prod_2"]
	assert.Nil(t, shoe.CollaborativeScore)
	require.NotNil(t, shoe.ContentScore)
	assert.InDelta(t, *shoe.ContentScore*0.7, shoe.CombinedScore, 1e-12)

	for i := 1; i < len(result.Recommendations); i++ {
		assert.GreaterOrEqual(t, result.Recommendations[i-1].CombinedScore, result.Recommendations[i].CombinedScore)
	}
}

func TestRecommendationService_Combined(t *testing.T) {
	svc, _, _ := newTestRecommendations(t)

	content, collab, err := svc.Combined(context.Background(), "X", []string{"prod_1"})
	require.NoError(t, err)
	require.NotNil(t, content)
	require.NotNil(t, collab)
	assert.Equal(t, "prod_2", content.Recommendations[0].ProductID)
	assert.Equal(t, "X", collab.CustomerID)
	assert.Len(t, collab.Recommendations, 1)
}

func TestRecommendationService_ReviewCount(t *testing.T) {
	svc, _, ratings := newTestRecommendations(t)
	ctx := context.Background()

	count, err := svc.ReviewCount(ctx, "Y")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = svc.ReviewCount(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, count)

	ratings.err = errors.New("deadline exceeded")
	_, err = svc.ReviewCount(ctx, "Y")
	assert.ErrorIs(t, err, ratings.err)
}

func TestRecommendationService_PropagatesArtifactErrors(t *testing.T) {
	buildErr := errors.New("catalog unavailable")
	logger := testLogger()
	svc := NewRecommendationService(brokenArtifacts{err: buildErr}, &fakeRatings{}, &config.RecommendationConfig{}, NewMetrics(logger), logger)
	ctx := context.Background()

	_, err := svc.Content(ctx, []string{"prod_1"})
	assert.ErrorIs(t, err, buildErr)

	_, err = svc.Collaborative(ctx, "X")
	assert.ErrorIs(t, err, buildErr)

	_, err = svc.Hybrid(ctx, "X", []string{"prod_1"})
	assert.ErrorIs(t, err, buildErr)

	_, _, err = svc.Combined(ctx, "X", []string{"prod_1"})
	assert.ErrorIs(t, err, buildErr)
}
