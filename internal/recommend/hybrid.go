package recommend

import (
	"sort"

	"github.com/temcen/storerec/pkg/models"
)

const DefaultHybridMaxResults = 100

// WeightThreshold applies once a customer has written at least MinReviews reviews.
type WeightThreshold struct {
	MinReviews    int     `mapstructure:"min_reviews"`
	Collaborative float64 `mapstructure:"collaborative"`
	Content       float64 `mapstructure:"content"`
}

// WeightTable is evaluated from the lowest threshold up; the last threshold the
// review count reaches wins.
type WeightTable []WeightThreshold

var DefaultWeightTable = WeightTable{
	{MinReviews: 0, Collaborative: 0.3, Content: 0.7},
	{MinReviews: 3, Collaborative: 0.5, Content: 0.5},
	{MinReviews: 5, Collaborative: 0.7, Content: 0.3},
}

func (t WeightTable) Select(reviewCount int) models.HybridWeights {
	if len(t) == 0 {
		t = DefaultWeightTable
	}

	ordered := make(WeightTable, len(t))
	copy(ordered, t)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].MinReviews < ordered[j].MinReviews })

	selected := ordered[0]
	for _, threshold := range ordered {
		if reviewCount >= threshold.MinReviews {
			selected = threshold
		}
	}
	return models.HybridWeights{Collaborative: selected.Collaborative, Content: selected.Content}
}

// NormalizeCollaborative maps a 1–5 predicted rating onto [0,1].
func NormalizeCollaborative(rating float64) float64 {
	return (clamp(rating, minRating, maxRating) - minRating) / (maxRating - minRating)
}

type HybridOptions struct {
	Weights    WeightTable `mapstructure:"weights"`
	MaxResults int         `mapstructure:"max_results"`
}

type HybridMerger struct {
	table WeightTable
	limit int
}

func NewHybridMerger(opts HybridOptions) *HybridMerger {
	if len(opts.Weights) == 0 {
		opts.Weights = DefaultWeightTable
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultHybridMaxResults
	}
	return &HybridMerger{table: opts.Weights, limit: opts.MaxResults}
}

func (m *HybridMerger) Weights(reviewCount int) models.HybridWeights {
	return m.table.Select(reviewCount)
}

// Merge fuses both result lists. A product found by only one strategy keeps
// just that strategy's weighted term.
func (m *HybridMerger) Merge(
	collab []models.CollaborativeRecommendation,
	content []models.Recommendation,
	reviewCount int,
) ([]models.CombinedRecommendation, models.HybridStats, models.HybridWeights) {
	weights := m.Weights(reviewCount)

	combined := make(map[string]*models.CombinedRecommendation, len(collab)+len(content))
	order := make([]string, 0, len(collab)+len(content))

	for _, item := range collab {
		normalized := NormalizeCollaborative(item.Prediction)
		if _, exists := combined[item.ProductID]; !exists {
			order = append(order, item.ProductID)
		}
		combined[item.ProductID] = &models.CombinedRecommendation{
			ProductID:          item.ProductID,
			Product:            item.Product,
			CombinedScore:      normalized * weights.Collaborative,
			CollaborativeScore: floatPtr(normalized),
		}
	}

	for _, item := range content {
		contribution := item.Similarity * weights.Content
		if existing, ok := combined[item.ProductID]; ok {
			existing.CombinedScore += contribution
			existing.ContentScore = floatPtr(item.Similarity)
			continue
		}
		order = append(order, item.ProductID)
		combined[item.ProductID] = &models.CombinedRecommendation{
			ProductID:     item.ProductID,
			Product:       item.Product,
			CombinedScore: contribution,
			ContentScore:  floatPtr(item.Similarity),
		}
	}

	results := make([]models.CombinedRecommendation, 0, len(order))
	for _, id := range order {
		results = append(results, *combined[id])
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].ProductID < results[j].ProductID
	})

	stats := models.HybridStats{
		TotalCombined:      len(combined),
		CollaborativeCount: len(collab),
		ContentCount:       len(content),
	}

	if len(results) > m.limit {
		results = results[:m.limit]
	}
	return results, stats, weights
}

func floatPtr(v float64) *float64 {
	return &v
}
