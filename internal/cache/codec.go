package cache

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/temcen/storerec/internal/recommend"
	"github.com/temcen/storerec/pkg/models"
)

// Bump a version whenever the record layout changes; older blobs then decode
// as corrupt and are rebuilt.
const (
	contentRecordVersion  = 1
	ratingsRecordVersion  = 1
	productsRecordVersion = 1
)

// ErrCorrupt marks a blob that could not be turned back into an artifact.
var ErrCorrupt = errors.New("corrupt cache record")

type termEntry struct {
	Term string `json:"term"`
	Dim  int    `json:"dim"`
}

type contentRecord struct {
	Version  int                 `json:"version"`
	Products []models.Product    `json:"products"`
	Terms    []termEntry         `json:"terms"`
	Matrix   [][]recommend.Entry `json:"matrix"`
}

type averageEntry struct {
	CustomerID string  `json:"customer_id"`
	Average    float64 `json:"average"`
}

type ratingsRecord struct {
	Version  int             `json:"version"`
	Ratings  []models.Rating `json:"ratings"`
	Averages []averageEntry  `json:"averages"`
}

type productsRecord struct {
	Version  int              `json:"version"`
	Products []models.Product `json:"products"`
}

func EncodeContentIndex(index *recommend.ContentIndex) ([]byte, error) {
	if err := index.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to encode content index: %w", err)
	}

	terms := index.Terms.Terms()
	record := contentRecord{
		Version:  contentRecordVersion,
		Products: index.Products,
		Terms:    make([]termEntry, len(terms)),
		Matrix:   make([][]recommend.Entry, len(index.Vectors)),
	}
	for dim, term := range terms {
		record.Terms[dim] = termEntry{Term: term, Dim: dim}
	}
	for i, vec := range index.Vectors {
		record.Matrix[i] = []recommend.Entry(vec)
		if record.Matrix[i] == nil {
			record.Matrix[i] = []recommend.Entry{}
		}
	}

	return json.Marshal(record)
}

func DecodeContentIndex(data []byte) (*recommend.ContentIndex, error) {
	var record contentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if record.Version != contentRecordVersion {
		return nil, fmt.Errorf("%w: content record version %d", ErrCorrupt, record.Version)
	}

	sort.Slice(record.Terms, func(i, j int) bool { return record.Terms[i].Dim < record.Terms[j].Dim })
	ordered := make([]string, len(record.Terms))
	for i, entry := range record.Terms {
		if entry.Dim != i {
			return nil, fmt.Errorf("%w: term dimensions are not contiguous at %d", ErrCorrupt, entry.Dim)
		}
		ordered[i] = entry.Term
	}
	terms, err := recommend.TermIndexFromTerms(ordered)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	vectors := make([]recommend.SparseVector, len(record.Matrix))
	for i, row := range record.Matrix {
		vec, err := recommend.SparseVectorFromEntries(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrCorrupt, i, err)
		}
		vectors[i] = vec
	}

	index := &recommend.ContentIndex{
		Products: record.Products,
		Vectors:  vectors,
		Terms:    terms,
	}
	if err := index.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return index, nil
}

// EncodeRatingMatrices writes ratings ordered by customer then product so equal
// matrices produce equal blobs.
func EncodeRatingMatrices(m *recommend.RatingMatrices) ([]byte, error) {
	if m == nil {
		return nil, errors.New("refusing to encode nil rating matrices")
	}

	ratings := m.Ratings()
	sort.Slice(ratings, func(i, j int) bool {
		if ratings[i].CustomerID != ratings[j].CustomerID {
			return ratings[i].CustomerID < ratings[j].CustomerID
		}
		return ratings[i].ProductID < ratings[j].ProductID
	})
	if ratings == nil {
		ratings = []models.Rating{}
	}

	averages := make([]averageEntry, 0, len(m.UserAverages))
	for customerID, avg := range m.UserAverages {
		averages = append(averages, averageEntry{CustomerID: customerID, Average: avg})
	}
	sort.Slice(averages, func(i, j int) bool { return averages[i].CustomerID < averages[j].CustomerID })

	return json.Marshal(ratingsRecord{
		Version:  ratingsRecordVersion,
		Ratings:  ratings,
		Averages: averages,
	})
}

func DecodeRatingMatrices(data []byte) (*recommend.RatingMatrices, error) {
	var record ratingsRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if record.Version != ratingsRecordVersion {
		return nil, fmt.Errorf("%w: ratings record version %d", ErrCorrupt, record.Version)
	}

	m := recommend.BuildRatingMatrices(record.Ratings)
	if len(record.Averages) != len(m.UserProduct) {
		return nil, fmt.Errorf("%w: %d averages for %d customers", ErrCorrupt, len(record.Averages), len(m.UserProduct))
	}
	for _, entry := range record.Averages {
		if _, ok := m.UserProduct[entry.CustomerID]; !ok {
			return nil, fmt.Errorf("%w: average for unknown customer %s", ErrCorrupt, entry.CustomerID)
		}
		m.UserAverages[entry.CustomerID] = entry.Average
	}
	return m, nil
}

func EncodeProducts(products []models.Product) ([]byte, error) {
	if products == nil {
		products = []models.Product{}
	}
	return json.Marshal(productsRecord{Version: productsRecordVersion, Products: products})
}

func DecodeProducts(data []byte) ([]models.Product, error) {
	var record productsRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if record.Version != productsRecordVersion {
		return nil, fmt.Errorf("%w: products record version %d", ErrCorrupt, record.Version)
	}
	if record.Products == nil {
		return nil, fmt.Errorf("%w: products record has no product list", ErrCorrupt)
	}
	return record.Products, nil
}
