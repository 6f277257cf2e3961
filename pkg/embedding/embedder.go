// Package embedding turns text samples into vectors so that text features can
// be compared with the drift metrics.
package embedding

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one vector of Dimensions() length per text.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the vector length.
	Dimensions() int

	// Model identifies the embedding scheme in logs.
	Model() string
}

// Fitter is an Embedder whose weights depend on corpus statistics. Fit must
// see every text of a comparison before Embed so that both sides share one
// vocabulary.
type Fitter interface {
	Fit(ctx context.Context, texts []string) error
}
