package linear

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrNotFitted is returned when a model is used before Fit
	ErrNotFitted = errors.New("model is not fitted")

	// ErrEmptyVocabulary is returned when fitting yields no terms
	ErrEmptyVocabulary = errors.New("empty vocabulary; documents may only contain stop words")
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// DefaultMaxFeatures caps the TF-IDF vocabulary
const DefaultMaxFeatures = 1000

// SparseVector is a row of a sparse matrix with indices in ascending order
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dot returns the dot product of v with a dense vector
func (v SparseVector) Dot(dense []float64) float64 {
	var sum float64
	for i, idx := range v.Indices {
		sum += v.Values[i] * dense[idx]
	}
	return sum
}

// VectorizerConfig configures a TfidfVectorizer
type VectorizerConfig struct {
	// MaxFeatures keeps only the most frequent terms. If 0, uses DefaultMaxFeatures; negative means unlimited.
	MaxFeatures int

	// StopWords are dropped after tokenization. If nil, uses EnglishStopWords.
	StopWords map[string]struct{}
}

// TfidfVectorizer turns texts into L2-normalised TF-IDF rows
type TfidfVectorizer struct {
	maxFeatures int
	stopWords   map[string]struct{}
	vocabulary  map[string]int
	idf         []float64
}

// NewTfidfVectorizer creates an unfitted vectorizer
func NewTfidfVectorizer(cfg VectorizerConfig) *TfidfVectorizer {
	if cfg.MaxFeatures == 0 {
		cfg.MaxFeatures = DefaultMaxFeatures
	}
	if cfg.StopWords == nil {
		cfg.StopWords = EnglishStopWords()
	}
	return &TfidfVectorizer{maxFeatures: cfg.MaxFeatures, stopWords: cfg.StopWords}
}

func (v *TfidfVectorizer) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := v.stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Fit learns the vocabulary and inverse document frequencies
func (v *TfidfVectorizer) Fit(texts []string) error {
	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, tok := range v.tokenize(text) {
			termFreq[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				docFreq[tok]++
			}
		}
	}
	if len(termFreq) == 0 {
		return ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(termFreq))
	for term := range termFreq {
		terms = append(terms, term)
	}
	if v.maxFeatures > 0 && len(terms) > v.maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if termFreq[terms[i]] != termFreq[terms[j]] {
				return termFreq[terms[i]] > termFreq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.maxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(texts))
	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	return nil
}

// NumFeatures returns the vocabulary size
func (v *TfidfVectorizer) NumFeatures() int {
	return len(v.idf)
}

// Vocabulary returns the fitted terms in feature order
func (v *TfidfVectorizer) Vocabulary() []string {
	terms := make([]string, len(v.idf))
	for term, i := range v.vocabulary {
		terms[i] = term
	}
	return terms
}

// Transform maps texts to TF-IDF rows using the fitted vocabulary
func (v *TfidfVectorizer) Transform(texts []string) ([]SparseVector, error) {
	if v.vocabulary == nil {
		return nil, ErrNotFitted
	}

	rows := make([]SparseVector, len(texts))
	for r, text := range texts {
		counts := make(map[int]float64)
		for _, tok := range v.tokenize(text) {
			if idx, ok := v.vocabulary[tok]; ok {
				counts[idx]++
			}
		}

		row := SparseVector{Indices: make([]int, 0, len(counts)), Values: make([]float64, 0, len(counts))}
		for idx := range counts {
			row.Indices = append(row.Indices, idx)
		}
		sort.Ints(row.Indices)

		var norm float64
		for _, idx := range row.Indices {
			val := counts[idx] * v.idf[idx]
			row.Values = append(row.Values, val)
			norm += val * val
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for i := range row.Values {
				row.Values[i] /= norm
			}
		}
		rows[r] = row
	}
	return rows, nil
}

// FitTransform fits on texts and transforms them
func (v *TfidfVectorizer) FitTransform(texts []string) ([]SparseVector, error) {
	if err := v.Fit(texts); err != nil {
		return nil, err
	}
	return v.Transform(texts)
}
