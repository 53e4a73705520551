package embeddings

import "context"

// Vector is a simple float32 slice wrapper.
type Vector []float32

// Embedder turns text into vectors for retrieval indexing and search.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}
