package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"gonum.org/v1/gonum/floats"

	"github.com/c360/driftview/errors"
)

// BM25Config configures the BM25 embedder.
type BM25Config struct {
	// Dimensions is the hashed vector length (default 64).
	Dimensions int `json:"dimensions" yaml:"dimensions"`

	// K1 controls term frequency saturation (default 1.5).
	K1 float64 `json:"k1" yaml:"k1"`

	// B controls document length normalization (default 0.75).
	B float64 `json:"b" yaml:"b"`
}

func (c *BM25Config) applyDefaults() {
	if c.Dimensions == 0 {
		c.Dimensions = 64
	}
	if c.K1 == 0 {
		c.K1 = 1.5
	}
	if c.B == 0 {
		c.B = 0.75
	}
}

// Validate fills defaults and rejects unusable parameters.
func (c *BM25Config) Validate() error {
	c.applyDefaults()
	if c.Dimensions < 0 || c.K1 < 0 || c.B < 0 || c.B > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "BM25Config", "Validate",
			fmt.Sprintf("dimensions=%d k1=%g b=%g out of range", c.Dimensions, c.K1, c.B))
	}
	return nil
}

// BM25Embedder produces lexical embeddings: terms are hashed into a fixed
// number of buckets and weighted by BM25 against the fitted corpus. Vectors
// are L2-normalized; an empty text yields the zero vector.
type BM25Embedder struct {
	dimensions int
	k1         float64
	b          float64

	mu           sync.RWMutex
	docCount     int
	avgDocLength float64
	termDocCount map[string]int
}

// NewBM25Embedder creates an embedder with no corpus statistics.
func NewBM25Embedder(cfg BM25Config) (*BM25Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BM25Embedder{
		dimensions:   cfg.Dimensions,
		k1:           cfg.K1,
		b:            cfg.B,
		termDocCount: make(map[string]int),
	}, nil
}

// Fit replaces the corpus statistics with those of texts.
func (e *BM25Embedder) Fit(ctx context.Context, texts []string) error {
	termDocCount := make(map[string]int)
	total := 0
	for i, text := range texts {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tokens := tokenize(text)
		total += len(tokens)
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				termDocCount[tok]++
				seen[tok] = true
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.termDocCount = termDocCount
	e.docCount = len(texts)
	e.avgDocLength = 0
	if len(texts) > 0 {
		e.avgDocLength = float64(total) / float64(len(texts))
	}
	return nil
}

// Embed weights each text against the fitted statistics without changing
// them, so the result does not depend on call order.
func (e *BM25Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	e.mu.RLock()
	defer e.mu.RUnlock()

	for i, text := range texts {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = e.vector(tokenize(text))
	}
	return out, nil
}

// Dimensions returns the vector length.
func (e *BM25Embedder) Dimensions() int {
	return e.dimensions
}

// Model returns the model identifier.
func (e *BM25Embedder) Model() string {
	return fmt.Sprintf("bm25-k%.1f-b%.2f-d%d", e.k1, e.b, e.dimensions)
}

func (e *BM25Embedder) idf(term string) float64 {
	if e.docCount == 0 {
		return 1.0
	}
	df := max(e.termDocCount[term], 1)
	// Robertson-Sparck Jones weighting, floored to stay positive.
	idf := math.Log((float64(e.docCount-df) + 0.5) / (float64(df) + 0.5))
	return math.Max(idf, 0.01)
}

// vector requires e.mu held for reading.
func (e *BM25Embedder) vector(tokens []string) []float64 {
	v := make([]float64, e.dimensions)
	if len(tokens) == 0 {
		return v
	}

	termFreq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		termFreq[tok]++
	}

	avg := e.avgDocLength
	if avg == 0 {
		avg = float64(len(tokens))
	}
	lengthNorm := 1 - e.b + e.b*(float64(len(tokens))/avg)

	for term, tf := range termFreq {
		score := e.idf(term) * (float64(tf) * (e.k1 + 1)) / (float64(tf) + e.k1*lengthNorm)
		v[hashTerm(term, e.dimensions)] += score
	}

	if norm := floats.Norm(v, 2); norm > 0 {
		floats.Scale(1/norm, v)
	}
	return v
}

// hashTerm maps a term to a bucket with FNV-1a.
func hashTerm(term string, buckets int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return int(h.Sum32() % uint32(buckets))
}

// tokenize lowercases text, splits on non-alphanumerics and drops one-rune
// tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
