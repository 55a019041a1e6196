package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/pkg/models"
)

const catalogQuery = `
	SELECT
		p.id,
		p.title,
		COALESCE(p.description, ''),
		c.id,
		c.name,
		c.mpath
	FROM product p
	LEFT JOIN product_category_product pcp ON pcp.product_id = p.id
	LEFT JOIN product_category c ON c.id = pcp.product_category_id AND c.deleted_at IS NULL
	WHERE p.deleted_at IS NULL`

// PGCatalogProvider reads products and their categories from the commerce
// database.
type PGCatalogProvider struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

func NewPGCatalogProvider(db DatabaseQuerier, logger *logrus.Logger) *PGCatalogProvider {
	return &PGCatalogProvider{db: db, logger: logger}
}

func (p *PGCatalogProvider) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := catalogQuery
	var args []interface{}
	if len(filter.IDs) > 0 {
		query += " AND p.id = ANY($1)"
		args = append(args, filter.IDs)
	}
	query += " ORDER BY p.id, c.mpath"

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	positions := make(map[string]int)
	for rows.Next() {
		var (
			productID, title, description string
			categoryID, categoryName      *string
			mpath                         *string
		)
		if err := rows.Scan(&productID, &title, &description, &categoryID, &categoryName, &mpath); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}

		at, seen := positions[productID]
		if !seen {
			at = len(products)
			positions[productID] = at
			products = append(products, models.Product{
				ID:          productID,
				Title:       title,
				Description: description,
			})
		}

		if categoryID == nil {
			continue
		}
		category := models.Category{ID: *categoryID, Path: SplitMaterializedPath(deref(mpath))}
		if categoryName != nil {
			category.Name = *categoryName
		}
		products[at].Categories = append(products[at].Categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog rows failed: %w", err)
	}

	p.logger.WithField("products", len(products)).Debug("Loaded catalog")
	return products, nil
}

// SplitMaterializedPath turns a dotted ancestor path such as "pcat_a.pcat_b"
// into its segments. Empty segments from leading, trailing or doubled dots are
// dropped.
func SplitMaterializedPath(mpath string) []string {
	segments := strings.Split(mpath, ".")
	path := segments[:0]
	for _, segment := range segments {
		if segment = strings.TrimSpace(segment); segment != "" {
			path = append(path, segment)
		}
	}
	if len(path) == 0 {
		return nil
	}
	return path
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
