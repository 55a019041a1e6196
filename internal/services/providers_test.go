package services

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/storerec/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func strPtr(s string) *string { return &s }

func TestPGCatalogProvider_List(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	provider := NewPGCatalogProvider(mockDB, testLogger())
	columns := []string{"id", "title", "description", "category_id", "category_name", "mpath"}

	t.Run("groups categories per product", func(t *testing.T) {
		rows := pgxmock.NewRows(columns).
			AddRow("prod_1", "Trail shoe", "Grippy", strPtr("pcat_run"), strPtr("Running"), strPtr("pcat_shoes.pcat_run")).
			AddRow("prod_1", "Trail shoe", "Grippy", strPtr("pcat_sale"), strPtr("Sale"), strPtr("pcat_sale")).
			AddRow("prod_2", "Rain jacket", "", nil, nil, nil)

		mockDB.ExpectQuery("SELECT").WillReturnRows(rows)

		products, err := provider.List(context.Background(), models.ProductFilter{})
		require.NoError(t, err)
		require.Len(t, products, 2)

		assert.Equal(t, "prod_1", products[0].ID)
		assert.Equal(t, []models.Category{
			{ID: "pcat_run", Name: "Running", Path: []string{"pcat_shoes", "pcat_run"}},
			{ID: "pcat_sale", Name: "Sale", Path: []string{"pcat_sale"}},
		}, products[0].Categories)
		assert.Equal(t, []string{"pcat_shoes", "pcat_run", "pcat_sale"}, products[0].Hierarchy())

		assert.Equal(t, "prod_2", products[1].ID)
		assert.Empty(t, products[1].Categories)

		require.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("filters by id", func(t *testing.T) {
		mockDB.ExpectQuery(`p\.id = ANY\(\$1\)`).
			WithArgs([]string{"prod_9"}).
			WillReturnRows(pgxmock.NewRows(columns))

		products, err := provider.List(context.Background(), models.ProductFilter{IDs: []string{"prod_9"}})
		require.NoError(t, err)
		assert.NotNil(t, products)
		assert.Empty(t, products)

		require.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("wraps query errors", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mockDB.ExpectQuery("SELECT").WillReturnError(dbErr)

		_, err := provider.List(context.Background(), models.ProductFilter{})
		assert.ErrorIs(t, err, dbErr)

		require.NoError(t, mockDB.ExpectationsWereMet())
	})
}

func TestSplitMaterializedPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitMaterializedPath("a.b.c"))
	assert.Equal(t, []string{"a", "b"}, SplitMaterializedPath(".a..b."))
	assert.Equal(t, []string{"root"}, SplitMaterializedPath("root"))
	assert.Nil(t, SplitMaterializedPath(""))
}

func TestPGRatingProvider_List(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	provider := NewPGRatingProvider(mockDB, testLogger())
	columns := []string{"customer_id", "product_id", "rating"}

	t.Run("skips ratings off the scale", func(t *testing.T) {
		rows := pgxmock.NewRows(columns).
			AddRow("cus_1", "prod_1", 4.0).
			AddRow("cus_1", "prod_2", 0.0).
			AddRow("cus_2", "prod_1", 6.0).
			AddRow("cus_2", "prod_3", 1.0)

		mockDB.ExpectQuery("FROM review").WillReturnRows(rows)

		ratings, err := provider.List(context.Background(), models.RatingFilter{})
		require.NoError(t, err)
		assert.Equal(t, []models.Rating{
			{CustomerID: "cus_1", ProductID: "prod_1", Rating: 4},
			{CustomerID: "cus_2", ProductID: "prod_3", Rating: 1},
		}, ratings)

		require.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("filters by customer", func(t *testing.T) {
		mockDB.ExpectQuery(`customer_id = ANY\(\$1\)`).
			WithArgs([]string{"cus_1"}).
			WillReturnRows(pgxmock.NewRows(columns).AddRow("cus_1", "prod_1", 5.0))

		ratings, err := provider.List(context.Background(), models.RatingFilter{CustomerIDs: []string{"cus_1"}})
		require.NoError(t, err)
		assert.Len(t, ratings, 1)

		require.NoError(t, mockDB.ExpectationsWereMet())
	})
}
