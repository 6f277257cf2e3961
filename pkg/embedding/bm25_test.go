package embedding

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func newEmbedder(t *testing.T, cfg BM25Config) *BM25Embedder {
	t.Helper()
	e, err := NewBM25Embedder(cfg)
	if err != nil {
		t.Fatalf("NewBM25Embedder() error = %v", err)
	}
	return e
}

func TestBM25Embedder_Embed(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  int
	}{
		{name: "empty input", texts: []string{}, want: 0},
		{name: "single text", texts: []string{"hello world"}, want: 1},
		{name: "multiple texts", texts: []string{"hello world", "goodbye world", "hello goodbye"}, want: 3},
		{name: "empty text", texts: []string{""}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEmbedder(t, BM25Config{})
			vectors, err := e.Embed(context.Background(), tt.texts)
			if err != nil {
				t.Fatalf("Embed() error = %v", err)
			}
			if len(vectors) != tt.want {
				t.Errorf("Embed() got %d vectors, want %d", len(vectors), tt.want)
			}
			for i, v := range vectors {
				if len(v) != e.Dimensions() {
					t.Errorf("vector %d has length %d, want %d", i, len(v), e.Dimensions())
				}
			}
		})
	}
}

func TestBM25Config_Validate(t *testing.T) {
	cfg := BM25Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Dimensions != 64 || cfg.K1 != 1.5 || cfg.B != 0.75 {
		t.Errorf("defaults = %+v", cfg)
	}

	for _, bad := range []BM25Config{{Dimensions: -1}, {K1: -1}, {B: 2}} {
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%+v) expected error", bad)
		}
	}
}

func TestBM25Embedder_Model(t *testing.T) {
	e := newEmbedder(t, BM25Config{Dimensions: 32})
	if got := e.Model(); got != "bm25-k1.5-b0.75-d32" {
		t.Errorf("Model() = %q", got)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple text", "hello world", []string{"hello", "world"}},
		{"mixed case", "Hello World", []string{"hello", "world"}},
		{"with punctuation", "Hello, world!", []string{"hello", "world"}},
		{"with numbers", "test123 abc456", []string{"test123", "abc456"}},
		{"filters short tokens", "a bb ccc", []string{"bb", "ccc"}},
		{"multibyte", "é çà", []string{"çà"}},
		{"empty text", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenize() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBM25Embedder_Normalized(t *testing.T) {
	e := newEmbedder(t, BM25Config{Dimensions: 128})
	texts := []string{"hello world", "test document", ""}
	if err := e.Fit(context.Background(), texts); err != nil {
		t.Fatal(err)
	}
	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range vectors[:2] {
		if norm := floats.Norm(v, 2); math.Abs(norm-1) > 1e-9 {
			t.Errorf("vector %d has L2 norm %f, want 1", i, norm)
		}
	}
	if floats.Norm(vectors[2], 2) != 0 {
		t.Error("empty text should embed to the zero vector")
	}
}

func TestBM25Embedder_OrderIndependent(t *testing.T) {
	e := newEmbedder(t, BM25Config{Dimensions: 64})
	corpus := []string{"machine learning models", "cooking recipes for dinner", "machine learning algorithms"}
	if err := e.Fit(context.Background(), corpus); err != nil {
		t.Fatal(err)
	}

	first, err := e.Embed(context.Background(), []string{corpus[0]})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), corpus); err != nil {
		t.Fatal(err)
	}
	again, err := e.Embed(context.Background(), []string{corpus[0]})
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(first[0], again[0]) {
		t.Error("Embed must not change corpus statistics")
	}
}

func TestBM25Embedder_Similarity(t *testing.T) {
	e := newEmbedder(t, BM25Config{Dimensions: 256})
	texts := []string{
		"machine learning algorithms",
		"machine learning models",
		"cooking recipes for dinner",
		"weather forecast today",
		"stock market news",
		"football match results",
	}
	if err := e.Fit(context.Background(), texts); err != nil {
		t.Fatal(err)
	}
	v, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}

	near := floats.Distance(v[0], v[1], 2)
	far := floats.Distance(v[0], v[2], 2)
	if near >= far {
		t.Errorf("distance(similar)=%f should be below distance(dissimilar)=%f", near, far)
	}
}

func TestBM25Embedder_Cancelled(t *testing.T) {
	e := newEmbedder(t, BM25Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Fit(ctx, []string{"a text"}); err == nil {
		t.Error("Fit() expected context error")
	}
	if _, err := e.Embed(ctx, []string{"a text"}); err == nil {
		t.Error("Embed() expected context error")
	}
}
