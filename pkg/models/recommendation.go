package models

import (
	"time"

	"github.com/google/uuid"
)

// Recommendation is a content-based result. MatchLevel is the distance between
// the candidate's category hierarchy and the target's, 0 being the closest.
type Recommendation struct {
	ProductID  string   `json:"product_id"`
	Product    *Product `json:"product"`
	Similarity float64  `json:"similarity"`
	MatchLevel *int     `json:"match_level,omitempty"`
	Hierarchy  []string `json:"categories,omitempty"`
}

type CollaborativeRecommendation struct {
	ProductID  string   `json:"product_id"`
	Product    *Product `json:"product"`
	Prediction float64  `json:"prediction"`
}

type CombinedRecommendation struct {
	ProductID          string   `json:"product_id"`
	Product            *Product `json:"product"`
	CombinedScore      float64  `json:"combined_score"`
	CollaborativeScore *float64 `json:"collab_score,omitempty"`
	ContentScore       *float64 `json:"content_score,omitempty"`
}

type HybridWeights struct {
	Collaborative float64 `json:"collaborative"`
	Content       float64 `json:"content"`
}

type HybridStats struct {
	TotalCombined      int `json:"total_combined"`
	CollaborativeCount int `json:"collab_count"`
	ContentCount       int `json:"content_count"`
}

type ContentResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

type CollaborativeResult struct {
	CustomerID      string                        `json:"customer_id"`
	Recommendations []CollaborativeRecommendation `json:"recommendations"`
	Similarities    map[string]float64            `json:"similarities"`
	GeneratedAt     time.Time                     `json:"generated_at"`
}

type HybridResult struct {
	CustomerID      string                   `json:"customer_id"`
	Recommendations []CombinedRecommendation `json:"recommendations"`
	Stats           HybridStats              `json:"stats"`
	Weights         HybridWeights            `json:"weights"`
	ReviewCount     int                      `json:"review_count"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

type ContentRecommendationRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,dive,required"`
}

type CollaborativeRecommendationRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
}

type HybridRecommendationRequest struct {
	CustomerID string   `json:"customer_id" validate:"required"`
	ProductIDs []string `json:"product_ids" validate:"required,dive,required"`
}

type ContentRecommendationResponse struct {
	RequestID              uuid.UUID      `json:"request_id"`
	ContentRecommendations *ContentResult `json:"content_recommendations"`
}

type CollaborativeRecommendationResponse struct {
	RequestID                    uuid.UUID            `json:"request_id"`
	CollaborativeRecommendations *CollaborativeResult `json:"collaborative_recommendations"`
}

type HybridRecommendationResponse struct {
	RequestID             uuid.UUID     `json:"request_id"`
	HybridRecommendations *HybridResult `json:"hybrid_recommendations"`
}

type CombinedRecommendationResponse struct {
	RequestID                    uuid.UUID            `json:"request_id"`
	ContentRecommendations       *ContentResult       `json:"content_recommendations"`
	CollaborativeRecommendations *CollaborativeResult `json:"collaborative_recommendations"`
}
