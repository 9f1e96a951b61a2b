package driven

import "context"

// AnalyzeResult is the raw generation result from an LLMClient, before
// de-anonymization and verification.
type AnalyzeResult struct {
	Answer       string
	TokensUsed   int
	ModelVersion string
}

// LLMClient is the generative model the analyze pipeline calls with
// already-anonymized query and context text. It never sees PII.
type LLMClient interface {
	Analyze(ctx context.Context, anonQuery, anonContext, requestID string) (AnalyzeResult, error)
}
