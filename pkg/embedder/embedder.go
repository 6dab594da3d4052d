package embedder

import "context"

// Embedder generates embedding vectors for text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelInfo() string
}
