package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/storerec/internal/middleware"
	"github.com/temcen/storerec/pkg/models"
)

// MockRecommendationService is a mock implementation
type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) Content(ctx context.Context, productIDs []string) (*models.ContentResult, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContentResult), args.Error(1)
}

func (m *MockRecommendationService) Collaborative(ctx context.Context, customerID string) (*models.CollaborativeResult, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CollaborativeResult), args.Error(1)
}

func (m *MockRecommendationService) Hybrid(ctx context.Context, customerID string, productIDs []string) (*models.HybridResult, error) {
	args := m.Called(ctx, customerID, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HybridResult), args.Error(1)
}

func (m *MockRecommendationService) Combined(ctx context.Context, customerID string, productIDs []string) (*models.ContentResult, *models.CollaborativeResult, error) {
	args := m.Called(ctx, customerID, productIDs)
	var content *models.ContentResult
	if v := args.Get(0); v != nil {
		content = v.(*models.ContentResult)
	}
	var collab *models.CollaborativeResult
	if v := args.Get(1); v != nil {
		collab = v.(*models.CollaborativeResult)
	}
	return content, collab, args.Error(2)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newRecommendationRouter(svc *MockRecommendationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewRecommendationHandler(svc, testLogger())

	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/api/v1/recommendations", handler.Combined)
	router.POST("/api/v1/recommendations/content", handler.Content)
	router.POST("/api/v1/recommendations/collaborative", handler.Collaborative)
	router.POST("/api/v1/recommendations/hybrid", handler.Hybrid)
	return router
}

func post(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

func TestRecommendationHandler_Content(t *testing.T) {
	svc := new(MockRecommendationService)
	router := newRecommendationRouter(svc)

	level := 0
	result := &models.ContentResult{
		Recommendations: []models.Recommendation{
			{ProductID: "prod_2", Product: &models.Product{ID: "prod_2", Title: "Road shoe"}, Similarity: 0.42, MatchLevel: &level},
		},
		GeneratedAt: time.Now(),
	}
	svc.On("Content", mock.Anything, []string{"prod_1"}).Return(result, nil).Once()

	w := post(router, "/api/v1/recommendations/content", `{"product_ids":["prod_1"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.ContentRecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEqual(t, uuid.Nil, response.RequestID)
	assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), response.RequestID.String())
	require.Len(t, response.ContentRecommendations.Recommendations, 1)
	assert.Equal(t, "prod_2", response.ContentRecommendations.Recommendations[0].ProductID)

	svc.AssertExpectations(t)
}

func TestRecommendationHandler_ContentValidation(t *testing.T) {
	svc := new(MockRecommendationService)
	router := newRecommendationRouter(svc)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "missing product_ids", body: `{}`, code: "INVALID_PRODUCT_IDS"},
		{name: "empty body", body: ``, code: "INVALID_PRODUCT_IDS"},
		{name: "null product_ids", body: `{"product_ids":null}`, code: "INVALID_PRODUCT_IDS"},
		{name: "string product_ids", body: `{"product_ids":"prod_1"}`, code: "INVALID_PRODUCT_IDS"},
		{name: "object product_ids", body: `{"product_ids":{"id":"prod_1"}}`, code: "INVALID_PRODUCT_IDS"},
		{name: "blank id", body: `{"product_ids":[""]}`, code: "INVALID_PRODUCT_IDS"},
		{name: "malformed json", body: `{"product_ids":`, code: "INVALID_REQUEST_BODY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/api/v1/recommendations/content", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			code, message := errorCode(t, w)
			assert.Equal(t, tt.code, code)
			if tt.code == "INVALID_PRODUCT_IDS" {
				assert.Equal(t, "product_ids must be an array", message)
			}
		})
	}

	svc.AssertNotCalled(t, "Content", mock.Anything, mock.Anything)
}

func TestRecommendationHandler_EmptyProductList(t *testing.T) {
	svc := new(MockRecommendationService)
	router := newRecommendationRouter(svc)

	svc.On("Content", mock.Anything, []string{}).
		Return(&models.ContentResult{Recommendations: []models.Recommendation{}}, nil).Once()

	w := post(router, "/api/v1/recommendations/content", `{"product_ids":[]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestRecommendationHandler_Collaborative(t *testing.T) {
	svc := new(MockRecommendationService)
	router := newRecommendationRouter(svc)

	t.Run("returns predictions", func(t *testing.T) {
		svc.On("Collaborative", mock.Anything, "cus_1").Return(&models.CollaborativeResult{
			CustomerID: "cus_1",
			Recommendations: []models.CollaborativeRecommendation{
				{ProductID: "prod_3", Prediction: 3.17},
			},
			Similarities: map[string]float64{"cus_2": 0.99},
		}, nil).Once()

		w := post(router, "/api/v1/recommendations/collaborative", `{"customer_id":"cus_1"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var response models.CollaborativeRecommendationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 3.17, response.CollaborativeRecommendations.Recommendations[0].Prediction)
	})

	t.Run("missing customer", func(t *testing.T) {
		for _, body := range []string{`{}`, `{"customer_id":""}`, ``} {
			w := post(router, "/api/v1/recommendations/collaborative", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			code, message := errorCode(t, w)
			assert.Equal(t, "MISSING_CUSTOMER_ID", code)
			assert.Equal(t, "Missing required field: customer_id", message)
		}
	})

	t.Run("service failure", func(t *testing.T) {
		svc.On("Collaborative", mock.Anything, "cus_err").Return(nil, errors.New("connection refused")).Once()

		w := post(router, "/api/v1/recommendations/collaborative", `{"customer_id":"cus_err"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		code, _ := errorCode(t, w)
		assert.Equal(t, "RECOMMENDATION_FAILED", code)
	})

	svc.AssertExpectations(t)
}

func TestRecommendationHandler_Hybrid(t *testing.T) {
	svc := new(MockRecommendationService)
	router := newRecommendationRouter(svc)

	t.Run("returns merged list", func(t *testing.T) {
		score := 0.54
		svc.On("Hybrid", mock.Anything, "cus_1", []string{"prod_1"}).Return(&models.HybridResult{
			CustomerID: "cus_1",
			Recommendations: []models.CombinedRecommendation{
				{ProductID: "prod_3", CombinedScore: 0.16, CollaborativeScore: &score},
			},
			Weights:     models.HybridWeights{Collaborative: 0.3, Content: 0.7},
			ReviewCount: 2,
		}, nil).Once()

		w := post(router, "/api/v1/recommendations/hybrid", `{"customer_id":"cus_1","product_ids":["prod_1"]}`)
		require.Equal(t, http.StatusOK, w.Code)

		var response models.HybridRecommendationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 2, response.HybridRecommendations.ReviewCount)
		assert.Equal(t, 0.3, response.HybridRecommendations.Weights.Collaborative)
	})

	t.Run("reports the failing field", func(t *testing.T) {
		w := post(router, "/api/v1/recommendations/hybrid", `{"product_ids":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		code, _ := errorCode(t, w)
		assert.Equal(t, "INVALID_PRODUCT_IDS", code)

		w = post(router, "/api/v1/recommendations/hybrid", `{}`)
		code, _ = errorCode(t, w)
		assert.Equal(t, "MISSING_CUSTOMER_ID", code)

		w = post(router, "/api/v1/recommendations/hybrid", `{"customer_id":"cus_1"}`)
		code, _ = errorCode(t, w)
		assert.Equal(t, "INVALID_PRODUCT_IDS", code)
	})

	svc.AssertExpectations(t)
}

func TestRecommendationHandler_Combined(t *testing.T) {
	svc := new(MockRecommendationService)
	router := newRecommendationRouter(svc)

	svc.On("Combined", mock.Anything, "cus_1", []string{"prod_1", "prod_2"}).Return(
		&models.ContentResult{Recommendations: []models.Recommendation{{ProductID: "prod_4", Similarity: 0.5}}},
		&models.CollaborativeResult{CustomerID: "cus_1", Recommendations: []models.CollaborativeRecommendation{}},
		nil,
	).Once()

	w := post(router, "/api/v1/recommendations", `{"customer_id":"cus_1","product_ids":["prod_1","prod_2"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.CombinedRecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotNil(t, response.ContentRecommendations)
	require.NotNil(t, response.CollaborativeRecommendations)
	assert.Equal(t, "prod_4", response.ContentRecommendations.Recommendations[0].ProductID)
	assert.Empty(t, response.CollaborativeRecommendations.Recommendations)

	svc.On("Combined", mock.Anything, "cus_2", []string{"prod_1"}).Return(nil, nil, errors.New("timeout")).Once()
	w = post(router, "/api/v1/recommendations", `{"customer_id":"cus_2","product_ids":["prod_1"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	svc.AssertExpectations(t)
}
