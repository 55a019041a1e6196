package recommend

import (
	"github.com/temcen/storerec/pkg/models"
)

// RatingMatrices holds the user→product ratings, their transpose and the mean
// rating of every user.
type RatingMatrices struct {
	UserProduct  map[string]map[string]float64
	ProductUser  map[string]map[string]float64
	UserAverages map[string]float64
}

// BuildRatingMatrices fills both matrices in one pass. A repeated
// (customer, product) pair keeps the last rating seen.
func BuildRatingMatrices(ratings []models.Rating) *RatingMatrices {
	m := &RatingMatrices{
		UserProduct:  make(map[string]map[string]float64),
		ProductUser:  make(map[string]map[string]float64),
		UserAverages: make(map[string]float64),
	}

	for _, r := range ratings {
		m.set(r.CustomerID, r.ProductID, r.Rating)
	}
	m.computeAverages()

	return m
}

func (m *RatingMatrices) set(customerID, productID string, rating float64) {
	userRatings, ok := m.UserProduct[customerID]
	if !ok {
		userRatings = make(map[string]float64)
		m.UserProduct[customerID] = userRatings
	}
	userRatings[productID] = rating

	productRatings, ok := m.ProductUser[productID]
	if !ok {
		productRatings = make(map[string]float64)
		m.ProductUser[productID] = productRatings
	}
	productRatings[customerID] = rating
}

func (m *RatingMatrices) computeAverages() {
	for customerID, userRatings := range m.UserProduct {
		if len(userRatings) == 0 {
			continue
		}
		var sum float64
		for _, rating := range userRatings {
			sum += rating
		}
		m.UserAverages[customerID] = sum / float64(len(userRatings))
	}
}

// Ratings flattens the user→product matrix back into records.
func (m *RatingMatrices) Ratings() []models.Rating {
	var out []models.Rating
	for customerID, userRatings := range m.UserProduct {
		for productID, rating := range userRatings {
			out = append(out, models.Rating{CustomerID: customerID, ProductID: productID, Rating: rating})
		}
	}
	return out
}

// RatedCount is the number of distinct products the customer rated.
func (m *RatingMatrices) RatedCount(customerID string) int {
	return len(m.UserProduct[customerID])
}
