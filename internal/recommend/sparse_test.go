package recommend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseVector(t *testing.T) {
	t.Run("drops zeros and orders by dimension", func(t *testing.T) {
		vec := NewSparseVector(map[int]float64{7: 1.5, 2: 0, 3: -2, 0: 4})

		require.Len(t, vec, 3)
		assert.Equal(t, Entry{Dim: 0, Weight: 4}, vec[0])
		assert.Equal(t, Entry{Dim: 3, Weight: -2}, vec[1])
		assert.Equal(t, Entry{Dim: 7, Weight: 1.5}, vec[2])
		assert.Equal(t, 0.0, vec.Get(2))
		assert.Equal(t, 1.5, vec.Get(7))
		assert.Equal(t, 0.0, vec.Get(100))
	})

	t.Run("dot only counts shared dimensions", func(t *testing.T) {
		a := NewSparseVector(map[int]float64{0: 1, 2: 3, 5: 2})
		b := NewSparseVector(map[int]float64{2: 4, 5: 0.5, 9: 10})

		assert.InDelta(t, 13.0, a.Dot(b), 1e-12)
		assert.InDelta(t, a.Dot(b), b.Dot(a), 1e-12)
	})

	t.Run("rebuilding from entries rejects disorder", func(t *testing.T) {
		_, err := SparseVectorFromEntries([]Entry{{Dim: 3, Weight: 1}, {Dim: 1, Weight: 1}})
		assert.Error(t, err)

		_, err = SparseVectorFromEntries([]Entry{{Dim: -1, Weight: 1}})
		assert.Error(t, err)

		vec, err := SparseVectorFromEntries([]Entry{{Dim: 1, Weight: 2}, {Dim: 4, Weight: 0}})
		require.NoError(t, err)
		assert.Equal(t, SparseVector{{Dim: 1, Weight: 2}}, vec)
	})
}

func TestCosineSimilarity(t *testing.T) {
	vectors := []SparseVector{
		NewSparseVector(map[int]float64{0: 1}),
		NewSparseVector(map[int]float64{0: 0.3, 4: 1.7, 9: 2.2}),
		NewSparseVector(map[int]float64{1: 1e-3, 2: 1e3}),
	}

	t.Run("self similarity is one", func(t *testing.T) {
		for _, vec := range vectors {
			assert.InDelta(t, 1.0, CosineSimilarity(vec, vec), 1e-9)
		}
	})

	t.Run("identical vectors can fall short of one", func(t *testing.T) {
		vec := NewSparseVector(map[int]float64{0: 1, 1: 1})
		sim := CosineSimilarity(vec, vec)
		assert.Equal(t, 0.9999999999999998, sim)
		assert.GreaterOrEqual(t, sim, 1-duplicateTolerance)
	})

	t.Run("zero norm yields zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity(SparseVector{}, vectors[1]))
		assert.Equal(t, 0.0, CosineSimilarity(vectors[1], nil))
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity(vectors[0], vectors[2]))
	})

	t.Run("known angle", func(t *testing.T) {
		a := NewSparseVector(map[int]float64{0: 1, 1: 1})
		b := NewSparseVector(map[int]float64{0: 1})
		assert.InDelta(t, 1/math.Sqrt2, CosineSimilarity(a, b), 1e-12)
	})
}

func TestTermIndex(t *testing.T) {
	t.Run("assigns dimensions once in first-seen order", func(t *testing.T) {
		idx := NewTermIndex()

		assert.Equal(t, 0, idx.Add("red"))
		assert.Equal(t, 1, idx.Add("shoe"))
		assert.Equal(t, 0, idx.Add("red"))
		assert.Equal(t, 2, idx.Add("lace"))
		assert.Equal(t, 3, idx.Len())

		dim, ok := idx.Lookup("shoe")
		assert.True(t, ok)
		assert.Equal(t, 1, dim)

		term, ok := idx.Term(2)
		assert.True(t, ok)
		assert.Equal(t, "lace", term)

		_, ok = idx.Term(3)
		assert.False(t, ok)
		assert.Equal(t, []string{"red", "shoe", "lace"}, idx.Terms())
	})

	t.Run("round trips through ordered terms", func(t *testing.T) {
		idx := NewTermIndex()
		for _, term := range []string{"b", "a", "c"} {
			idx.Add(term)
		}

		restored, err := TermIndexFromTerms(idx.Terms())
		require.NoError(t, err)
		for _, term := range []string{"a", "b", "c"} {
			want, _ := idx.Lookup(term)
			got, ok := restored.Lookup(term)
			assert.True(t, ok)
			assert.Equal(t, want, got)
		}
	})

	t.Run("rejects duplicate terms", func(t *testing.T) {
		_, err := TermIndexFromTerms([]string{"a", "b", "a"})
		assert.Error(t, err)
	})
}
