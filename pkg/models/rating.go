package models

type Rating struct {
	CustomerID string  `json:"customer_id" db:"customer_id" validate:"required"`
	ProductID  string  `json:"product_id" db:"product_id" validate:"required"`
	Rating     float64 `json:"rating" db:"rating" validate:"min=1,max=5"`
}

type RatingFilter struct {
	CustomerIDs []string `json:"customer_ids,omitempty"`
}
