package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/internal/middleware"
	"github.com/temcen/storerec/internal/services"
	"github.com/temcen/storerec/pkg/models"
)

const (
	codeMissingCustomerID    = "MISSING_CUSTOMER_ID"
	codeInvalidProductIDs    = "INVALID_PRODUCT_IDS"
	codeInvalidRequestBody   = "INVALID_REQUEST_BODY"
	codeRecommendationFailed = "RECOMMENDATION_FAILED"
)

var (
	errMissingCustomerID = &requestError{codeMissingCustomerID, "Missing required field: customer_id"}
	errInvalidProductIDs = &requestError{codeInvalidProductIDs, "product_ids must be an array"}
	errInvalidBody       = &requestError{codeInvalidRequestBody, "Invalid request body format"}
)

type requestError struct {
	code    string
	message string
}

func (e *requestError) Error() string { return e.message }

type RecommendationHandler struct {
	recommendations services.RecommendationServiceInterface
	validator       *validator.Validate
	logger          *logrus.Logger
}

func NewRecommendationHandler(
	recommendations services.RecommendationServiceInterface,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		recommendations: recommendations,
		validator:       validator.New(),
		logger:          logger,
	}
}

// Content handles POST /api/v1/recommendations/content.
func (h *RecommendationHandler) Content(c *gin.Context) {
	var request models.ContentRecommendationRequest
	if !h.bind(c, &request) {
		return
	}

	result, err := h.recommendations.Content(c.Request.Context(), request.ProductIDs)
	if err != nil {
		h.failed(c, err, logrus.Fields{"product_ids": request.ProductIDs})
		return
	}

	c.JSON(http.StatusOK, models.ContentRecommendationResponse{
		RequestID:              middleware.GetRequestID(c),
		ContentRecommendations: result,
	})
}

// Collaborative handles POST /api/v1/recommendations/collaborative.
func (h *RecommendationHandler) Collaborative(c *gin.Context) {
	var request models.CollaborativeRecommendationRequest
	if !h.bind(c, &request) {
		return
	}

	result, err := h.recommendations.Collaborative(c.Request.Context(), request.CustomerID)
	if err != nil {
		h.failed(c, err, logrus.Fields{"customer_id": request.CustomerID})
		return
	}

	c.JSON(http.StatusOK, models.CollaborativeRecommendationResponse{
		RequestID:                    middleware.GetRequestID(c),
		CollaborativeRecommendations: result,
	})
}

// Hybrid handles POST /api/v1/recommendations/hybrid.
func (h *RecommendationHandler) Hybrid(c *gin.Context) {
	var request models.HybridRecommendationRequest
	if !h.bind(c, &request) {
		return
	}

	result, err := h.recommendations.Hybrid(c.Request.Context(), request.CustomerID, request.ProductIDs)
	if err != nil {
		h.failed(c, err, logrus.Fields{"customer_id": request.CustomerID, "product_ids": request.ProductIDs})
		return
	}

	c.JSON(http.StatusOK, models.HybridRecommendationResponse{
		RequestID:             middleware.GetRequestID(c),
		HybridRecommendations: result,
	})
}

// Combined handles POST /api/v1/recommendations and returns both lists unfused.
func (h *RecommendationHandler) Combined(c *gin.Context) {
	var request models.HybridRecommendationRequest
	if !h.bind(c, &request) {
		return
	}

	content, collab, err := h.recommendations.Combined(c.Request.Context(), request.CustomerID, request.ProductIDs)
	if err != nil {
		h.failed(c, err, logrus.Fields{"customer_id": request.CustomerID, "product_ids": request.ProductIDs})
		return
	}

	c.JSON(http.StatusOK, models.CombinedRecommendationResponse{
		RequestID:                    middleware.GetRequestID(c),
		ContentRecommendations:       content,
		CollaborativeRecommendations: collab,
	})
}

// bind decodes and validates the body, writing a 400 on failure. An empty
// body decodes to the zero request so the missing field is reported by name.
func (h *RecommendationHandler) bind(c *gin.Context, request interface{}) bool {
	err := c.ShouldBindJSON(request)
	if err == nil || errors.Is(err, io.EOF) {
		err = h.validator.Struct(request)
	} else {
		err = decodeError(err)
	}
	if err == nil {
		return true
	}

	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		reqErr = validationError(err)
	}

	h.logger.WithError(err).WithField("code", reqErr.code).Warn("Rejected recommendation request")
	errorResponse(c, http.StatusBadRequest, reqErr.code, reqErr.message)
	return false
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Field {
		case "product_ids":
			return errInvalidProductIDs
		case "customer_id":
			return errMissingCustomerID
		}
	}
	return errInvalidBody
}

// validationError reports the customer before the products when both fail.
func validationError(err error) *requestError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errInvalidBody
	}

	result := errInvalidBody
	for _, fe := range fieldErrs {
		// dive errors name the element, as in ProductIDs[0]
		switch field := fe.StructField(); {
		case field == "CustomerID":
			return errMissingCustomerID
		case strings.HasPrefix(field, "ProductIDs"):
			result = errInvalidProductIDs
		}
	}
	return result
}

func (h *RecommendationHandler) failed(c *gin.Context, err error, fields logrus.Fields) {
	h.logger.WithError(err).WithFields(fields).Error("Failed to generate recommendations")
	errorResponse(c, http.StatusInternalServerError, codeRecommendationFailed, "Failed to generate recommendations")
}
