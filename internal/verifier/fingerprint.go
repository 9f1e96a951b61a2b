package verifier

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// FingerprintTracker records source and answer hashes per verification and
// invalidates verifications when a source changes. The source-hash →
// verification-ids index makes invalidation O(affected records), ported
// verbatim in shape from the reference fingerprint_tracker.
type FingerprintTracker struct {
	mu sync.Mutex

	fingerprintsBySourceID map[string]domain.SourceFingerprint // latest fingerprint per sourceID
	verifications          map[string]*domain.VerificationRecord
	sourceToVerifications   map[string]map[string]struct{} // sourceHash -> verificationIDs
	docToVerifications      map[string][]string             // docID -> verificationIDs, oldest first
}

// NewFingerprintTracker creates an empty in-process tracker.
func NewFingerprintTracker() *FingerprintTracker {
	return &FingerprintTracker{
		fingerprintsBySourceID: make(map[string]domain.SourceFingerprint),
		verifications:          make(map[string]*domain.VerificationRecord),
		sourceToVerifications:  make(map[string]map[string]struct{}),
		docToVerifications:     make(map[string][]string),
	}
}

// ComputeHash is the SHA-256 hex digest used throughout this package.
func ComputeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Fingerprint records (or re-records) a source's current text and hash.
func (t *FingerprintTracker) Fingerprint(sourceID, text string, metadata map[string]string) domain.SourceFingerprint {
	fp := domain.SourceFingerprint{
		SourceID:  sourceID,
		Text:      text,
		Hash:      ComputeHash(text),
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.fingerprintsBySourceID[sourceID] = fp
	return fp
}

// RecordVerification stores a new verification record indexed by every
// source hash it references.
func (t *FingerprintTracker) RecordVerification(verificationID, answerText string, sourceHashes []string, confidence float64, label domain.TrustLabel) domain.VerificationRecord {
	record := domain.VerificationRecord{
		VerificationID: verificationID,
		AnswerHash:     ComputeHash(answerText),
		SourceHashes:   sourceHashes,
		Confidence:     confidence,
		TrustLabel:     label,
		CreatedAt:      time.Now(),
		IsValid:        true,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.verifications[verificationID] = &record
	for _, h := range sourceHashes {
		if t.sourceToVerifications[h] == nil {
			t.sourceToVerifications[h] = make(map[string]struct{})
		}
		t.sourceToVerifications[h][verificationID] = struct{}{}
	}
	return record
}

// UpdateSource checks whether sourceID's text changed and, if so,
// invalidates every verification that referenced the superseded hash.
// Returns the invalidated verification IDs.
func (t *FingerprintTracker) UpdateSource(sourceID, newText string) []string {
	newHash := ComputeHash(newText)

	t.mu.Lock()
	defer t.mu.Unlock()

	old, existed := t.fingerprintsBySourceID[sourceID]
	if existed && old.Hash == newHash {
		return nil
	}

	t.fingerprintsBySourceID[sourceID] = domain.SourceFingerprint{
		SourceID:  sourceID,
		Text:      newText,
		Hash:      newHash,
		CreatedAt: time.Now(),
	}

	if !existed {
		return nil
	}

	var invalidated []string
	for vid := range t.sourceToVerifications[old.Hash] {
		if rec, ok := t.verifications[vid]; ok {
			rec.IsValid = false
			invalidated = append(invalidated, vid)
		}
	}
	return invalidated
}

// Get returns a previously recorded verification record, if any.
func (t *FingerprintTracker) Get(verificationID string) (domain.VerificationRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.verifications[verificationID]
	if !ok {
		return domain.VerificationRecord{}, false
	}
	return *rec, true
}

// AssociateDocument links a verification to the document it answered about.
// Verify itself has no notion of "document" (it only sees sources), so the
// caller records this association once it knows which document the request
// targeted.
func (t *FingerprintTracker) AssociateDocument(verificationID, docID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docToVerifications[docID] = append(t.docToVerifications[docID], verificationID)
}

// ListByDocument returns up to limit verification records for docID, most
// recent first.
func (t *FingerprintTracker) ListByDocument(docID string, limit int) []domain.VerificationRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := t.docToVerifications[docID]
	records := make([]domain.VerificationRecord, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(records) < limit; i-- {
		if rec, ok := t.verifications[ids[i]]; ok {
			records = append(records, *rec)
		}
	}
	return records
}
