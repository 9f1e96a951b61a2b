package driven

import (
	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// PIIDetector finds personally identifiable spans in text. Spans are
// returned in document order and must not overlap. The spec deliberately
// leaves detection quality as a pluggable concern — the default adapter is
// a regex table (internal/adapters/driven/pii).
type PIIDetector interface {
	Detect(text string) []domain.PIISpan
}
