package domain

import "time"

// TrustLabel is the human-facing verdict derived from a Verifier's
// confidence score.
type TrustLabel string

const (
	TrustVerified TrustLabel = "Verified"
	TrustReview   TrustLabel = "Review"
	TrustRejected TrustLabel = "Rejected"
)

// SourceFingerprint is a content hash recorded for audit and change
// detection. Hash is deterministic on Text: the same (SourceID, Text) pair
// always yields the same Hash.
type SourceFingerprint struct {
	SourceID  string    `json:"sourceId"`
	Text      string    `json:"text"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// VerificationRecord is the audit trail entry produced by one verifier
// run. IsValid starts true and flips to false the moment any referenced
// source hash is superseded by FingerprintTracker.UpdateSource.
type VerificationRecord struct {
	VerificationID string     `json:"verificationId"`
	AnswerHash     string     `json:"answerHash"`
	SourceHashes   []string   `json:"sourceHashes"`
	Confidence     float64    `json:"confidence"`
	TrustLabel     TrustLabel `json:"trustLabel"`
	CreatedAt      time.Time  `json:"createdAt"`
	IsValid        bool       `json:"isValid"`
}

// ConfidenceWeights are the fusion weights for the four confidence signals.
// Must sum to 1 ± 0.01.
type ConfidenceWeights struct {
	Semantic  float64
	Retrieval float64
	Citations float64
	Coverage  float64
}

// DefaultConfidenceWeights matches spec §4.4.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{Semantic: 0.60, Retrieval: 0.25, Citations: 0.10, Coverage: 0.05}
}

// SentenceVerdict is the per-sentence outcome of matching against sources.
type SentenceVerdict struct {
	Sentence    string  `json:"sentence"`
	BestScore   float64 `json:"bestScore"`
	HasCitation bool    `json:"hasCitation"`
	Verified    bool    `json:"verified"`
}

// VerificationResult is the full output of one Verifier.Verify call.
type VerificationResult struct {
	Confidence  float64           `json:"confidence"`
	TrustLabel  TrustLabel        `json:"trustLabel"`
	Verified    bool              `json:"verified"`
	Sentences   []SentenceVerdict `json:"sentences"`
	Citations   []string          `json:"citations"`
	Record      VerificationRecord `json:"record"`
	ReasonCode  string            `json:"reasonCode,omitempty"`
}

// TrustLabelFor applies the spec §4.4 thresholds.
func TrustLabelFor(confidence, overallThreshold float64) TrustLabel {
	switch {
	case confidence >= overallThreshold:
		return TrustVerified
	case confidence >= 0.60:
		return TrustReview
	default:
		return TrustRejected
	}
}
