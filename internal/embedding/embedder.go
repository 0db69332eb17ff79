package embedding

import "context"

// Embedder converts free text into numeric vectors.
// Embed returns exactly one vector per input text, in input order.
// Provider failures are reported wrapped in domain.ErrEmbeddingProvider.
type Embedder interface {
	Name() string
	Model() string
	// Dimension is the vector size, or 0 while it is not yet known.
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
