package recommend

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

const DefaultMinCommonProducts = 2

// UserSimilarities scores every other user against target by cosine over the
// products both rated. Users sharing fewer than minCommon products are left
// out; a zero denominator is recorded as similarity 0.
func UserSimilarities(targetID string, userProduct map[string]map[string]float64, minCommon int) map[string]float64 {
	if minCommon <= 0 {
		minCommon = DefaultMinCommonProducts
	}

	similarities := make(map[string]float64)
	targetRatings := userProduct[targetID]
	if len(targetRatings) == 0 {
		return similarities
	}

	for otherID, otherRatings := range userProduct {
		if otherID == targetID {
			continue
		}
		sim, ok := UserSimilarity(targetRatings, otherRatings, minCommon)
		if !ok {
			continue
		}
		similarities[otherID] = sim
	}

	return similarities
}

// UserSimilarity is symmetric in its two rating maps. Common products are
// visited in sorted order so both argument orders sum identically.
func UserSimilarity(a, b map[string]float64, minCommon int) (float64, bool) {
	common := make([]string, 0, len(a))
	for productID := range a {
		if _, ok := b[productID]; ok {
			common = append(common, productID)
		}
	}
	if len(common) < minCommon || len(common) == 0 {
		return 0, false
	}
	sort.Strings(common)

	x := make([]float64, len(common))
	y := make([]float64, len(common))
	for i, productID := range common {
		x[i] = a[productID]
		y[i] = b[productID]
	}

	denominator := floats.Norm(x, 2) * floats.Norm(y, 2)
	if denominator == 0 {
		return 0, true
	}
	return floats.Dot(x, y) / denominator, true
}
