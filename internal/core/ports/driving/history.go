package driving

import (
	"context"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// AuditRecord is one history entry returned by GET /v1/history/{documentId}.
// It intentionally excludes the original query/answer text to avoid
// re-surfacing PII; only the verification metadata is exposed.
type AuditRecord struct {
	VerificationID string            `json:"verificationId"`
	Confidence     float64           `json:"confidence"`
	TrustLabel     domain.TrustLabel `json:"trustLabel"`
	CreatedAt      string            `json:"createdAt"`
	IsValid        bool              `json:"isValid"`
}

// HistoryService lists past verifications for a document.
type HistoryService interface {
	History(ctx context.Context, docID string, limit int) ([]AuditRecord, error)
}
