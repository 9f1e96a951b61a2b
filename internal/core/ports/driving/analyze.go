package driving

import (
	"context"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// AnalyzeRequest is a natural-language question about one document.
type AnalyzeRequest struct {
	RequestID string
	UserID    string
	DocID     string
	Query     string
	TopK      int
}

// AnalyzeMetadata carries the observability fields the HTTP response
// includes alongside the answer.
type AnalyzeMetadata struct {
	LatencyMs             int64
	TokensUsed            int
	ChunksRetrieved       int
	ModelVersion          string
	PIIEntitiesAnonymized int
}

// AnalyzeResponse is the full result of one analyze call.
type AnalyzeResponse struct {
	Answer             string
	Citations          []string
	Confidence         float64
	TrustLabel         domain.TrustLabel
	RequestID          string
	UnsupportedClaims  []string
	Metadata           AnalyzeMetadata
}

// AnalyzeService runs the retrieve→anonymize→LLM→de-anonymize→verify
// pipeline for one question.
type AnalyzeService interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error)
}
