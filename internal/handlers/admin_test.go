package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/temcen/storerec/internal/services"
)

type MockArtifactManager struct {
	mock.Mock
}

func (m *MockArtifactManager) Invalidate(ctx context.Context, artifacts ...string) ([]string, error) {
	args := m.Called(ctx, artifacts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockArtifactManager) Warm(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func newAdminRouter(manager *MockArtifactManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewAdminHandler(manager, testLogger())

	router := gin.New()
	router.POST("/api/v1/admin/cache/invalidate", handler.InvalidateCache)
	router.POST("/api/v1/admin/cache/warm", handler.WarmCache)
	return router
}

func TestAdminHandler_InvalidateCache(t *testing.T) {
	manager := new(MockArtifactManager)
	router := newAdminRouter(manager)

	t.Run("named artifacts", func(t *testing.T) {
		manager.On("Invalidate", mock.Anything, []string{"content"}).Return([]string{"content"}, nil).Once()

		w := post(router, "/api/v1/admin/cache/invalidate", `{"keys":["content"]}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"artifacts":["content"],"status":"invalidated"}`, w.Body.String())
	})

	t.Run("empty body invalidates everything", func(t *testing.T) {
		all := []string{"catalog", "collaborative", "content"}
		manager.On("Invalidate", mock.Anything, []string(nil)).Return(all, nil).Once()

		w := post(router, "/api/v1/admin/cache/invalidate", ``)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "collaborative")
	})

	t.Run("unknown artifact", func(t *testing.T) {
		w := post(router, "/api/v1/admin/cache/invalidate", `{"keys":["embeddings"]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		code, _ := errorCode(t, w)
		assert.Equal(t, "INVALID_ARTIFACT", code)
	})

	t.Run("unknown artifact from service", func(t *testing.T) {
		manager.On("Invalidate", mock.Anything, []string{"catalog"}).
			Return(nil, fmt.Errorf("%w: catalog", services.ErrUnknownArtifact)).Once()

		w := post(router, "/api/v1/admin/cache/invalidate", `{"keys":["catalog"]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		manager.On("Invalidate", mock.Anything, []string{"collaborative"}).
			Return(nil, errors.New("redis delete: circuit breaker is open")).Once()

		w := post(router, "/api/v1/admin/cache/invalidate", `{"keys":["collaborative"]}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		code, _ := errorCode(t, w)
		assert.Equal(t, "CACHE_OPERATION_FAILED", code)
	})

	manager.AssertExpectations(t)
}

func TestAdminHandler_WarmCache(t *testing.T) {
	manager := new(MockArtifactManager)
	router := newAdminRouter(manager)

	manager.On("Warm", mock.Anything).Return([]string{"catalog", "collaborative", "content"}, nil).Once()
	w := post(router, "/api/v1/admin/cache/warm", ``)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"artifacts":["catalog","collaborative","content"],"status":"warmed"}`, w.Body.String())

	manager.On("Warm", mock.Anything).Return(nil, errors.New("failed to list ratings")).Once()
	w = post(router, "/api/v1/admin/cache/warm", ``)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	manager.AssertExpectations(t)
}
