package recommend

import (
	"fmt"
	"math"
	"sort"
)

// Entry is one nonzero coordinate of a sparse vector.
type Entry struct {
	Dim    int     `json:"d"`
	Weight float64 `json:"w"`
}

// SparseVector stores nonzero coordinates ordered by dimension.
type SparseVector []Entry

// NewSparseVector builds a vector from a dimension→weight map, dropping zeros.
func NewSparseVector(weights map[int]float64) SparseVector {
	vec := make(SparseVector, 0, len(weights))
	for dim, weight := range weights {
		if weight == 0 {
			continue
		}
		vec = append(vec, Entry{Dim: dim, Weight: weight})
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].Dim < vec[j].Dim })
	return vec
}

// SparseVectorFromEntries validates pairs read back from a flat representation.
func SparseVectorFromEntries(entries []Entry) (SparseVector, error) {
	vec := make(SparseVector, 0, len(entries))
	for i, e := range entries {
		if e.Dim < 0 {
			return nil, fmt.Errorf("negative dimension %d", e.Dim)
		}
		if i > 0 && entries[i-1].Dim >= e.Dim {
			return nil, fmt.Errorf("dimensions out of order at position %d", i)
		}
		if e.Weight == 0 {
			continue
		}
		vec = append(vec, e)
	}
	return vec, nil
}

// Get returns the weight at dim, 0 when absent.
func (v SparseVector) Get(dim int) float64 {
	i := sort.Search(len(v), func(i int) bool { return v[i].Dim >= dim })
	if i < len(v) && v[i].Dim == dim {
		return v[i].Weight
	}
	return 0
}

func (v SparseVector) Norm() float64 {
	var sum float64
	for _, e := range v {
		sum += e.Weight * e.Weight
	}
	return math.Sqrt(sum)
}

// Dot walks both vectors once, multiplying only shared dimensions.
func (v SparseVector) Dot(other SparseVector) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(v) && j < len(other) {
		switch {
		case v[i].Dim == other[j].Dim:
			dot += v[i].Weight * other[j].Weight
			i++
			j++
		case v[i].Dim < other[j].Dim:
			i++
		default:
			j++
		}
	}
	return dot
}

// CosineSimilarity returns 0 when either vector has zero norm.
func CosineSimilarity(a, b SparseVector) float64 {
	normA := a.Norm()
	normB := b.Norm()
	if normA == 0 || normB == 0 {
		return 0
	}
	return a.Dot(b) / (normA * normB)
}

// TermIndex is the bijective term↔dimension registry. Dimensions are handed
// out in first-seen order starting at 0 and are never reused.
type TermIndex struct {
	terms []string
	dims  map[string]int
}

func NewTermIndex() *TermIndex {
	return &TermIndex{dims: make(map[string]int)}
}

// TermIndexFromTerms rebuilds a registry where terms[i] owns dimension i.
func TermIndexFromTerms(terms []string) (*TermIndex, error) {
	idx := &TermIndex{
		terms: make([]string, 0, len(terms)),
		dims:  make(map[string]int, len(terms)),
	}
	for i, term := range terms {
		if _, exists := idx.dims[term]; exists {
			return nil, fmt.Errorf("duplicate term %q at dimension %d", term, i)
		}
		idx.dims[term] = i
		idx.terms = append(idx.terms, term)
	}
	return idx, nil
}

// Add returns the dimension of term, assigning the next one if it is new.
func (t *TermIndex) Add(term string) int {
	if dim, ok := t.dims[term]; ok {
		return dim
	}
	dim := len(t.terms)
	t.dims[term] = dim
	t.terms = append(t.terms, term)
	return dim
}

func (t *TermIndex) Lookup(term string) (int, bool) {
	dim, ok := t.dims[term]
	return dim, ok
}

func (t *TermIndex) Term(dim int) (string, bool) {
	if dim < 0 || dim >= len(t.terms) {
		return "", false
	}
	return t.terms[dim], true
}

func (t *TermIndex) Len() int {
	return len(t.terms)
}

// Terms returns a copy of the registry ordered by dimension.
func (t *TermIndex) Terms() []string {
	out := make([]string, len(t.terms))
	copy(out, t.terms)
	return out
}
