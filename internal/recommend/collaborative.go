package recommend

import (
	"math"
	"sort"

	"github.com/temcen/storerec/pkg/models"
)

const (
	DefaultFallbackAverage    = 2.5
	DefaultOutlierDeviation   = 2.5
	DefaultRecommendThreshold = 3.0
	DefaultCollabMaxResults   = 50

	minRating = 1.0
	maxRating = 5.0
)

type Prediction struct {
	ProductID string  `json:"product_id"`
	Rating    float64 `json:"rating"`
}

type CollaborativeOptions struct {
	MinCommonProducts  int     `mapstructure:"min_common_products"`
	FallbackAverage    float64 `mapstructure:"fallback_average"`
	OutlierDeviation   float64 `mapstructure:"outlier_deviation"`
	RecommendThreshold float64 `mapstructure:"recommend_threshold"`
	MaxResults         int     `mapstructure:"max_results"`
}

type CollaborativeRecommender struct {
	opts CollaborativeOptions
}

func NewCollaborativeRecommender(opts CollaborativeOptions) *CollaborativeRecommender {
	if opts.MinCommonProducts <= 0 {
		opts.MinCommonProducts = DefaultMinCommonProducts
	}
	if opts.FallbackAverage <= 0 {
		opts.FallbackAverage = DefaultFallbackAverage
	}
	if opts.OutlierDeviation <= 0 {
		opts.OutlierDeviation = DefaultOutlierDeviation
	}
	if opts.RecommendThreshold <= 0 {
		opts.RecommendThreshold = DefaultRecommendThreshold
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultCollabMaxResults
	}
	return &CollaborativeRecommender{opts: opts}
}

func (r *CollaborativeRecommender) Similarities(targetID string, m *RatingMatrices) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return UserSimilarities(targetID, m.UserProduct, r.opts.MinCommonProducts)
}

// Predict estimates the target's rating for every product rated by a similar
// user and not yet rated by the target, keeping the ones above the threshold.
func (r *CollaborativeRecommender) Predict(targetID string, similarities map[string]float64, m *RatingMatrices) []Prediction {
	if m == nil || len(similarities) == 0 {
		return []Prediction{}
	}

	targetAvg, ok := m.UserAverages[targetID]
	if !ok {
		targetAvg = r.opts.FallbackAverage
	}
	ratedByTarget := m.UserProduct[targetID]

	candidates := make(map[string]bool)
	for otherID := range similarities {
		for productID := range m.UserProduct[otherID] {
			if _, rated := ratedByTarget[productID]; !rated {
				candidates[productID] = true
			}
		}
	}

	predictions := make([]Prediction, 0, len(candidates))
	for productID := range candidates {
		rating := r.predictOne(productID, targetAvg, similarities, m)
		if rating > r.opts.RecommendThreshold {
			predictions = append(predictions, Prediction{ProductID: productID, Rating: rating})
		}
	}

	sort.Slice(predictions, func(i, j int) bool {
		if predictions[i].Rating != predictions[j].Rating {
			return predictions[i].Rating > predictions[j].Rating
		}
		return predictions[i].ProductID < predictions[j].ProductID
	})

	if len(predictions) > r.opts.MaxResults {
		predictions = predictions[:r.opts.MaxResults]
	}
	return predictions
}

func (r *CollaborativeRecommender) predictOne(productID string, targetAvg float64, similarities map[string]float64, m *RatingMatrices) float64 {
	raters := m.ProductUser[productID]
	raterIDs := make([]string, 0, len(raters))
	for raterID := range raters {
		raterIDs = append(raterIDs, raterID)
	}
	sort.Strings(raterIDs)

	var numerator, denominator float64
	for _, raterID := range raterIDs {
		sim, ok := similarities[raterID]
		if !ok {
			continue
		}
		deviation := raters[raterID] - m.UserAverages[raterID]
		if math.Abs(deviation) > r.opts.OutlierDeviation {
			continue
		}
		numerator += deviation * sim
		denominator += math.Abs(sim)
	}

	raw := targetAvg
	if denominator > 0 {
		raw = targetAvg + numerator/denominator
	}
	return roundTo2(clamp(raw, minRating, maxRating))
}

// ResolvePredictions attaches product records and drops ids missing from the
// catalog.
func ResolvePredictions(predictions []Prediction, products []models.Product) []models.CollaborativeRecommendation {
	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	out := make([]models.CollaborativeRecommendation, 0, len(predictions))
	for _, p := range predictions {
		product, ok := byID[p.ProductID]
		if !ok {
			continue
		}
		out = append(out, models.CollaborativeRecommendation{
			ProductID:  p.ProductID,
			Product:    product,
			Prediction: p.Rating,
		})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
