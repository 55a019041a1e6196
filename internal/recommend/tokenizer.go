package recommend

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer lowercases text, splits it on runs of anything that is not a
// letter or digit and drops English stopwords.
type Tokenizer struct {
	stopWords map[string]bool
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{stopWords: initializeStopWords()}
}

func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	// cases.Caser is stateful, so one per call
	lowered := cases.Lower(language.Und).String(norm.NFKC.String(text))

	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, field := range fields {
		if t.stopWords[field] {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

func (t *Tokenizer) IsStopWord(word string) bool {
	return t.stopWords[word]
}

func initializeStopWords() map[string]bool {
	stopWords := []string{
		"a", "about", "after", "all", "also", "am", "an", "and", "another", "any",
		"are", "as", "at", "be", "because", "been", "before", "being", "between",
		"both", "but", "by", "came", "can", "come", "could", "did", "do", "does",
		"each", "else", "for", "from", "get", "got", "had", "has", "have", "he",
		"her", "here", "him", "himself", "his", "how", "i", "if", "in", "into",
		"is", "it", "its", "just", "like", "make", "many", "me", "might", "more",
		"most", "much", "must", "my", "never", "no", "not", "now", "of", "on",
		"only", "or", "other", "our", "out", "over", "re", "said", "same", "see",
		"should", "since", "so", "some", "still", "such", "take", "than", "that",
		"the", "their", "them", "then", "there", "these", "they", "this", "those",
		"through", "to", "too", "under", "up", "use", "very", "want", "was", "way",
		"we", "well", "were", "what", "when", "where", "which", "while", "who",
		"will", "with", "would", "you", "your",
	}

	stopWordMap := make(map[string]bool, len(stopWords))
	for _, word := range stopWords {
		stopWordMap[word] = true
	}
	return stopWordMap
}
