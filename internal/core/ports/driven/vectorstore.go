package driven

import (
	"context"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// UpsertItem is one chunk payload submitted to VectorStore.Upsert.
type UpsertItem struct {
	NumericID uint64
	Vector    []float32
	Chunk     domain.Chunk
}

// VectorStore is the vector similarity index and chunk payload store.
// BatchContext MUST be a single backend call regardless of how many chunk
// IDs are passed — looping per chunk ("N+1") is a contract violation
// (testable property 3).
type VectorStore interface {
	// CreateCollection provisions the collection/table for a dimension,
	// always with cosine distance. Recreate drops and recreates an
	// existing collection of the same name.
	CreateCollection(ctx context.Context, dim int, recreate bool) error

	// Upsert writes or replaces chunk payloads and their vectors.
	Upsert(ctx context.Context, items []UpsertItem) error

	// Match performs a similarity search scoped to one document, returning
	// hits ordered by similarity descending.
	Match(ctx context.Context, queryVector []float32, docID string, minSimilarity float64, k int) ([]domain.Match, error)

	// BatchContext resolves hierarchical context (parent + siblings) for a
	// batch of chunk IDs in one round trip. Missing entries are simply
	// absent from the returned map.
	BatchContext(ctx context.Context, chunkIDs []string) (map[string]domain.ChunkContext, error)

	// DeleteByDocument removes all chunks belonging to a document.
	DeleteByDocument(ctx context.Context, docID string) error
}
