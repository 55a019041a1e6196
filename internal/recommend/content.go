package recommend

import (
	"errors"
	"fmt"
	"sort"

	"github.com/temcen/storerec/pkg/models"
)

const (
	DefaultSimilarityFloor   = 0.3
	DefaultContentMaxResults = 200

	// cosine of two identical vectors can land a few ulps either side of 1
	duplicateTolerance = 1e-9
)

// ContentIndex binds the product sequence to the TF-IDF rows built from it.
// The two are only meaningful together and are cached as one record.
type ContentIndex struct {
	Products []models.Product
	Vectors  []SparseVector
	Terms    *TermIndex
}

// BuildContentIndex indexes products in the given order.
func BuildContentIndex(products []models.Product, builder *IndexBuilder, weights FieldWeights) *ContentIndex {
	docs := make([]Document, len(products))
	for i := range products {
		docs[i] = ProductDocument(&products[i], weights)
	}
	index := builder.Build(docs)
	return &ContentIndex{
		Products: products,
		Vectors:  index.Vectors,
		Terms:    index.Terms,
	}
}

func (ci *ContentIndex) Validate() error {
	if ci == nil {
		return errors.New("content index is nil")
	}
	if len(ci.Products) != len(ci.Vectors) {
		return fmt.Errorf("content index misaligned: %d products, %d vectors", len(ci.Products), len(ci.Vectors))
	}
	if ci.Terms == nil {
		return errors.New("content index has no term registry")
	}
	for row, vec := range ci.Vectors {
		for _, e := range vec {
			if e.Dim >= ci.Terms.Len() {
				return fmt.Errorf("row %d references unknown dimension %d", row, e.Dim)
			}
		}
	}
	return nil
}

type ContentOptions struct {
	SimilarityFloor float64 `mapstructure:"similarity_floor"`
	MaxResults      int     `mapstructure:"max_results"`
}

type ContentRecommender struct {
	floor float64
	limit int
}

func NewContentRecommender(opts ContentOptions) *ContentRecommender {
	if opts.SimilarityFloor <= 0 {
		opts.SimilarityFloor = DefaultSimilarityFloor
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultContentMaxResults
	}
	return &ContentRecommender{floor: opts.SimilarityFloor, limit: opts.MaxResults}
}

// Recommend ranks products similar to the targets. Candidates must sit on a
// prefix of the target's category hierarchy; closer hierarchy matches rank
// first, then higher similarity. Unknown target ids are skipped.
func (r *ContentRecommender) Recommend(targetIDs []string, index *ContentIndex) []models.Recommendation {
	if index == nil || len(targetIDs) == 0 || len(index.Products) == 0 {
		return []models.Recommendation{}
	}

	targets := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		targets[id] = true
	}

	positions := make(map[string]int, len(index.Products))
	for i := range index.Products {
		if _, exists := positions[index.Products[i].ID]; !exists {
			positions[index.Products[i].ID] = i
		}
	}

	var merged []models.Recommendation
	for _, targetID := range targetIDs {
		targetIdx, ok := positions[targetID]
		if !ok {
			continue
		}
		merged = append(merged, r.recommendForTarget(targetIdx, targets, index)...)
	}

	unique := make(map[string]int, len(merged))
	deduped := make([]models.Recommendation, 0, len(merged))
	for _, rec := range merged {
		if at, exists := unique[rec.ProductID]; exists {
			if rec.Similarity > deduped[at].Similarity {
				deduped[at] = rec
			}
			continue
		}
		unique[rec.ProductID] = len(deduped)
		deduped = append(deduped, rec)
	}

	sortByMatch(deduped)
	if len(deduped) > r.limit {
		deduped = deduped[:r.limit]
	}
	return deduped
}

func (r *ContentRecommender) recommendForTarget(targetIdx int, targets map[string]bool, index *ContentIndex) []models.Recommendation {
	target := &index.Products[targetIdx]
	targetVector := index.Vectors[targetIdx]
	targetHierarchy := target.Hierarchy()
	targetMaxDepth := len(targetHierarchy) - 1

	var recs []models.Recommendation
	for i := range index.Products {
		candidate := &index.Products[i]
		if i == targetIdx || targets[candidate.ID] {
			continue
		}

		sim := CosineSimilarity(targetVector, index.Vectors[i])
		if sim >= 1-duplicateTolerance || sim < r.floor {
			continue
		}

		hierarchy := candidate.Hierarchy()
		matchDepth, ok := matchHierarchy(targetHierarchy, hierarchy)
		if !ok {
			continue
		}

		matchLevel := targetMaxDepth - matchDepth
		recs = append(recs, models.Recommendation{
			ProductID:  candidate.ID,
			Product:    candidate,
			Similarity: sim,
			MatchLevel: &matchLevel,
			Hierarchy:  hierarchy,
		})
	}

	sortByMatch(recs)
	if len(recs) > r.limit {
		recs = recs[:r.limit]
	}
	return recs
}

// matchHierarchy reports whether candidate is a prefix of target and the last
// position that matched (-1 for an empty candidate).
func matchHierarchy(target, candidate []string) (int, bool) {
	matchDepth := -1
	for depth := range candidate {
		if depth >= len(target) || candidate[depth] != target[depth] {
			return -1, false
		}
		matchDepth = depth
	}
	return matchDepth, true
}

func sortByMatch(recs []models.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		li, lj := matchLevelOf(recs[i]), matchLevelOf(recs[j])
		if li != lj {
			return li < lj
		}
		if recs[i].Similarity != recs[j].Similarity {
			return recs[i].Similarity > recs[j].Similarity
		}
		return recs[i].ProductID < recs[j].ProductID
	})
}

func matchLevelOf(rec models.Recommendation) int {
	if rec.MatchLevel == nil {
		return 0
	}
	return *rec.MatchLevel
}
