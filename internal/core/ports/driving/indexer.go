package driving

import (
	"context"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// IndexRequest carries an uploaded file through normalize→parse→chunk→embed→upsert.
type IndexRequest struct {
	UserID   string
	Filename string
	MimeType string
	Content  []byte
}

// IndexResult is returned to the HTTP boundary for POST /v1/index.
type IndexResult struct {
	Document      domain.Document
	ChunksCreated int
}

// IndexerService indexes a single uploaded document, end to end.
type IndexerService interface {
	Index(ctx context.Context, req IndexRequest) (IndexResult, error)
}
