package driven

import "context"

// Embedder generates vector embeddings for text. Implementations may call
// a remote model (OpenAI-compatible HTTP, a local batch server, ...); the
// core only depends on the dimension and ordering contracts below.
type Embedder interface {
	// Dim returns the embedding dimension this Embedder produces.
	Dim() int

	// EmbedOne embeds a single piece of text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds multiple texts, returning vectors in the same
	// order as the input. Implementations should batch remotely where
	// possible rather than looping EmbedOne.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
