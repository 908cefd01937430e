// internal/logclass/tfidf.go
package logclass

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenRe = regexp.MustCompile(`\b\w\w+\b`)

// Vectorizer weights unigram and bigram counts by smoothed inverse document
// frequency and scales each vector to unit length
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	MaxNgram   int            `json:"max_ngram"`
}

// VectorizerParams controls which terms enter the vocabulary
type VectorizerParams struct {
	MaxNgram int     // 2 keeps unigrams and bigrams
	MinDF    int     // minimum number of documents containing a term
	MaxDF    float64 // maximum fraction of documents containing a term
}

// DefaultVectorizerParams keeps unigrams and bigrams seen in at least two
// documents and in no more than 90% of them
func DefaultVectorizerParams() VectorizerParams {
	return VectorizerParams{MaxNgram: 2, MinDF: 2, MaxDF: 0.9}
}

// Terms splits text into its unigrams and n-grams up to maxNgram
func Terms(text string, maxNgram int) []string {
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)
	if maxNgram < 1 {
		maxNgram = 1
	}
	terms := make([]string, 0, len(tokens)*maxNgram)
	for n := 1; n <= maxNgram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// FitVectorizer learns the vocabulary and idf weights from docs
func FitVectorizer(docs []string, p VectorizerParams) (*Vectorizer, error) {
	if len(docs) == 0 {
		return nil, errors.New("no documents")
	}

	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range Terms(doc, p.MaxNgram) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	maxDocs := int(math.Floor(p.MaxDF * float64(len(docs))))
	if p.MaxDF <= 0 || p.MaxDF >= 1 {
		maxDocs = len(docs)
	}

	kept := make([]string, 0, len(df))
	for term, n := range df {
		if n >= p.MinDF && n <= maxDocs {
			kept = append(kept, term)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("empty vocabulary from %d documents", len(docs))
	}
	sort.Strings(kept)

	v := &Vectorizer{
		Vocabulary: make(map[string]int, len(kept)),
		IDF:        make([]float64, len(kept)),
		MaxNgram:   p.MaxNgram,
	}
	n := float64(len(docs))
	for i, term := range kept {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v, nil
}

// Transform returns the l2-normalized tf-idf vector for text. Unknown terms
// are ignored; text with no known term yields the zero vector.
func (v *Vectorizer) Transform(text string) []float64 {
	x := make([]float64, len(v.IDF))
	for _, term := range Terms(text, v.MaxNgram) {
		if i, ok := v.Vocabulary[term]; ok {
			x[i]++
		}
	}

	var norm float64
	for i := range x {
		x[i] *= v.IDF[i]
		norm += x[i] * x[i]
	}
	if norm == 0 {
		return x
	}
	norm = math.Sqrt(norm)
	for i := range x {
		x[i] /= norm
	}
	return x
}

// Validate checks that the vocabulary indexes the idf table
func (v *Vectorizer) Validate() error {
	if len(v.Vocabulary) == 0 || len(v.Vocabulary) != len(v.IDF) {
		return fmt.Errorf("vectorizer: %d terms, %d idf weights", len(v.Vocabulary), len(v.IDF))
	}
	for term, i := range v.Vocabulary {
		if i < 0 || i >= len(v.IDF) {
			return fmt.Errorf("vectorizer: term %q has index %d out of range", term, i)
		}
	}
	return nil
}
