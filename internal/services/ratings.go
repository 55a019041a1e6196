package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/pkg/models"
)

const ratingsQuery = `
	SELECT customer_id, product_id, rating::float8
	FROM review
	WHERE deleted_at IS NULL
		AND customer_id IS NOT NULL`

// PGRatingProvider reads review ratings. Rows outside the 1–5 scale are
// skipped with a warning.
type PGRatingProvider struct {
	db        DatabaseQuerier
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewPGRatingProvider(db DatabaseQuerier, logger *logrus.Logger) *PGRatingProvider {
	return &PGRatingProvider{db: db, validator: validator.New(), logger: logger}
}

func (p *PGRatingProvider) List(ctx context.Context, filter models.RatingFilter) ([]models.Rating, error) {
	query := ratingsQuery
	var args []interface{}
	if len(filter.CustomerIDs) > 0 {
		query += " AND customer_id = ANY($1)"
		args = append(args, filter.CustomerIDs)
	}
	query += " ORDER BY created_at, id"

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ratings query failed: %w", err)
	}
	defer rows.Close()

	ratings := make([]models.Rating, 0)
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.CustomerID, &r.ProductID, &r.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		if err := p.validator.Struct(r); err != nil {
			p.logger.WithFields(logrus.Fields{
				"customer_id": r.CustomerID,
				"product_id":  r.ProductID,
				"rating":      r.Rating,
			}).Warn("Skipping invalid review rating")
			continue
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review rows failed: %w", err)
	}

	return ratings, nil
}
