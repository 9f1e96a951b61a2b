// Package verifier implements the sentence-level "auditor": split an
// answer into sentences, semantically match each against retrieved
// sources, fuse signals into a confidence score, and fingerprint the
// inputs for later invalidation.
package verifier

import (
	"context"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// Config tunes the verifier's thresholds and retry policy.
type Config struct {
	SentenceThreshold float64
	OverallThreshold  float64
	AutoRetryThreshold float64
	MaxRetries        int
	EmbeddingCacheSize int
}

// DefaultConfig matches spec §6 defaults.
func DefaultConfig() Config {
	return Config{
		SentenceThreshold:  0.75,
		OverallThreshold:   0.80,
		AutoRetryThreshold: 0.60,
		MaxRetries:         2,
		EmbeddingCacheSize: 4096,
	}
}

// RefetchSources is the optional auto-retry callback: given the answer and
// its current confidence, return a fresh source set to re-verify against.
type RefetchSources func(ctx context.Context, answer string, confidence float64) ([]domain.RetrievalResult, error)

// Verifier ties the splitter, citation extractor, semantic matcher,
// confidence engine, and fingerprint tracker into one Verify operation.
type Verifier struct {
	cfg         Config
	splitter    *Splitter
	citations   CitationExtractor
	matcher     *SemanticMatcher
	confidence  *ConfidenceEngine
	fingerprint *FingerprintTracker
}

// New wires a Verifier from its subcomponents.
func New(cfg Config, matcher *SemanticMatcher, fingerprint *FingerprintTracker) *Verifier {
	citations := NewMarkerCitationExtractor()
	return &Verifier{
		cfg:         cfg,
		splitter:    NewSplitter(citations),
		citations:   citations,
		matcher:     matcher,
		confidence:  NewConfidenceEngine(cfg.SentenceThreshold, cfg.OverallThreshold, domain.DefaultConfidenceWeights()),
		fingerprint: fingerprint,
	}
}

// Verify splits answer into sentences, matches each against sources'
// content, fuses a confidence score, records a fingerprinted audit trail,
// and optionally retries via refetch when confidence is too low. An empty
// sentence list or empty source list short-circuits to Rejected.
func (v *Verifier) Verify(ctx context.Context, verificationID, answer string, sources []domain.RetrievalResult, refetch RefetchSources) (domain.VerificationResult, error) {
	result, err := v.verifyOnce(ctx, verificationID, answer, sources)
	if err != nil {
		return domain.VerificationResult{}, err
	}

	retries := 0
	for refetch != nil && result.Confidence < v.cfg.AutoRetryThreshold && retries < v.cfg.MaxRetries {
		newSources, err := refetch(ctx, answer, result.Confidence)
		if err != nil || len(newSources) == 0 {
			break
		}
		sources = newSources
		result, err = v.verifyOnce(ctx, verificationID, answer, sources)
		if err != nil {
			return domain.VerificationResult{}, err
		}
		retries++
	}

	return result, nil
}

func (v *Verifier) verifyOnce(ctx context.Context, verificationID, answer string, sources []domain.RetrievalResult) (domain.VerificationResult, error) {
	sentences := v.splitter.Split(answer)
	if len(sentences) == 0 || len(sources) == 0 {
		return v.rejected(verificationID, answer, sources, "empty_sentences_or_sources"), nil
	}

	sourceTexts := make([]string, len(sources))
	retrievalScores := make([]float64, len(sources))
	for i, s := range sources {
		sourceTexts[i] = s.Content
		retrievalScores[i] = s.Similarity
	}

	verdicts := make([]domain.SentenceVerdict, len(sentences))
	sentenceScores := make([]float64, len(sentences))
	citationCount := 0
	hasCitations := false

	for i, sent := range sentences {
		scores, err := v.matcher.Match(ctx, sent.Text, sourceTexts)
		if err != nil {
			return domain.VerificationResult{}, err
		}
		best := 0.0
		for _, sc := range scores {
			if sc > best {
				best = sc
			}
		}
		sentenceScores[i] = best
		if sent.HasCitation {
			hasCitations = true
			citationCount++
		}
		verdicts[i] = domain.SentenceVerdict{
			Sentence:    sent.Text,
			BestScore:   best,
			HasCitation: sent.HasCitation,
			Verified:    best >= v.cfg.SentenceThreshold,
		}
	}

	breakdown := v.confidence.Calculate(VerificationSignals{
		SentenceScores:  sentenceScores,
		RetrievalScores: retrievalScores,
		HasCitations:    hasCitations,
		CitationCount:   citationCount,
	})
	label := v.confidence.TrustLabel(breakdown.Confidence)

	sourceHashes := make([]string, len(sources))
	for i, s := range sources {
		fp := v.fingerprint.Fingerprint(s.ChunkID, s.Content, nil)
		sourceHashes[i] = fp.Hash
	}
	record := v.fingerprint.RecordVerification(verificationID, answer, sourceHashes, breakdown.Confidence, label)

	return domain.VerificationResult{
		Confidence: breakdown.Confidence,
		TrustLabel: label,
		Verified:   breakdown.Verified,
		Sentences:  verdicts,
		Citations:  v.citations.Extract(answer),
		Record:     record,
	}, nil
}

func (v *Verifier) rejected(verificationID, answer string, sources []domain.RetrievalResult, reason string) domain.VerificationResult {
	sourceHashes := make([]string, len(sources))
	for i, s := range sources {
		sourceHashes[i] = ComputeHash(s.Content)
	}
	record := v.fingerprint.RecordVerification(verificationID, answer, sourceHashes, 0, domain.TrustRejected)
	return domain.VerificationResult{
		Confidence: 0,
		TrustLabel: domain.TrustRejected,
		Verified:   false,
		Record:     record,
		ReasonCode: reason,
	}
}
