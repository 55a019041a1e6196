package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/internal/services"
	"github.com/temcen/storerec/pkg/models"
)

// AdminHandler exposes cache maintenance to operators.
type AdminHandler struct {
	artifacts services.ArtifactManagerInterface
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewAdminHandler(artifacts services.ArtifactManagerInterface, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		artifacts: artifacts,
		validator: validator.New(),
		logger:    logger,
	}
}

// InvalidateCache drops the named artifacts, or all of them for an empty body.
func (h *AdminHandler) InvalidateCache(c *gin.Context) {
	var request models.CacheInvalidationRequest
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body format")
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		h.logger.WithError(err).Warn("Cache invalidation validation failed")
		errorResponse(c, http.StatusBadRequest, "INVALID_ARTIFACT", "keys must be any of: content, collaborative, catalog")
		return
	}

	names, err := h.artifacts.Invalidate(c.Request.Context(), request.Keys...)
	if err != nil {
		if errors.Is(err, services.ErrUnknownArtifact) {
			errorResponse(c, http.StatusBadRequest, "INVALID_ARTIFACT", err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to invalidate artifacts")
		errorResponse(c, http.StatusInternalServerError, "CACHE_OPERATION_FAILED", "Failed to invalidate artifacts")
		return
	}

	c.JSON(http.StatusOK, models.CacheOperationResponse{Artifacts: names, Status: "invalidated"})
}

// WarmCache rebuilds every artifact now instead of on the next request.
func (h *AdminHandler) WarmCache(c *gin.Context) {
	names, err := h.artifacts.Warm(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to warm artifacts")
		errorResponse(c, http.StatusInternalServerError, "CACHE_OPERATION_FAILED", "Failed to warm artifacts")
		return
	}

	c.JSON(http.StatusOK, models.CacheOperationResponse{Artifacts: names, Status: "warmed"})
}
