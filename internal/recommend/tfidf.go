package recommend

import (
	"math"

	"github.com/temcen/storerec/pkg/models"
)

// Field is a run of text whose tokens each add Weight to term frequency.
type Field struct {
	Text   string
	Weight float64
}

// Document is the ordered list of weighted fields indexed for one product.
type Document []Field

// FieldWeights are the term frequency multipliers per product field.
type FieldWeights struct {
	Title       float64 `mapstructure:"title_weight"`
	Description float64 `mapstructure:"description_weight"`
	Category    float64 `mapstructure:"category_weight"`
}

var DefaultFieldWeights = FieldWeights{Title: 2.0, Description: 1.0, Category: 0.5}

// ProductDocument lays out title, description and category names in that order.
func ProductDocument(product *models.Product, weights FieldWeights) Document {
	doc := Document{
		{Text: product.Title, Weight: weights.Title},
		{Text: product.Description, Weight: weights.Description},
	}
	for _, category := range product.Categories {
		doc = append(doc, Field{Text: category.Name, Weight: weights.Category})
	}
	return doc
}

// Index is a TF-IDF matrix: Vectors[i] belongs to the i-th input document.
type Index struct {
	Vectors []SparseVector
	Terms   *TermIndex
}

type IndexBuilder struct {
	tokenizer *Tokenizer
}

func NewIndexBuilder(tokenizer *Tokenizer) *IndexBuilder {
	if tokenizer == nil {
		tokenizer = NewTokenizer()
	}
	return &IndexBuilder{tokenizer: tokenizer}
}

// BuildText indexes raw documents where every token counts once.
func (b *IndexBuilder) BuildText(corpus []string) *Index {
	docs := make([]Document, len(corpus))
	for i, text := range corpus {
		docs[i] = Document{{Text: text, Weight: 1}}
	}
	return b.Build(docs)
}

// Build computes tf·idf with idf = ln(N/df). df counts documents, not
// occurrences, so a term present in every document gets weight 0 and is left
// out of the sparse rows.
func (b *IndexBuilder) Build(docs []Document) *Index {
	terms := NewTermIndex()
	termFreqs := make([]map[int]float64, len(docs))
	docFreqs := make(map[int]int)

	for docIdx, doc := range docs {
		freqs := make(map[int]float64)
		seen := make(map[int]bool)

		for _, field := range doc {
			if field.Weight <= 0 {
				continue
			}
			for _, token := range b.tokenizer.Tokenize(field.Text) {
				dim := terms.Add(token)
				freqs[dim] += field.Weight
				if !seen[dim] {
					seen[dim] = true
					docFreqs[dim]++
				}
			}
		}

		termFreqs[docIdx] = freqs
	}

	numDocs := float64(len(docs))
	vectors := make([]SparseVector, len(docs))
	for docIdx, freqs := range termFreqs {
		weights := make(map[int]float64, len(freqs))
		for dim, tf := range freqs {
			idf := math.Log(numDocs / float64(docFreqs[dim]))
			weights[dim] = tf * idf
		}
		vectors[docIdx] = NewSparseVector(weights)
	}

	return &Index{Vectors: vectors, Terms: terms}
}
