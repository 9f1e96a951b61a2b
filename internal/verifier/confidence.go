package verifier

import (
	"math"
	"sort"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// VerificationSignals are the raw inputs to ConfidenceEngine.Calculate,
// mirroring the original implementation's VerificationSignals container.
type VerificationSignals struct {
	SentenceScores  []float64
	RetrievalScores []float64
	HasCitations    bool
	CitationCount   int
}

// ConfidenceBreakdown is the per-component score plus the fused result.
type ConfidenceBreakdown struct {
	Semantic   float64
	Retrieval  float64
	Citations  float64
	Coverage   float64
	Confidence float64
	Verified   bool
}

// ConfidenceEngine fuses verification signals into a single score, taken
// verbatim (formula and weights) from the reference confidence engine.
type ConfidenceEngine struct {
	sentenceThreshold float64
	overallThreshold  float64
	weights           domain.ConfidenceWeights
}

// NewConfidenceEngine validates that weights sum to 1 ± 0.01, panicking
// otherwise — a misconfigured weight set is a startup-time programming
// error, not a runtime one.
func NewConfidenceEngine(sentenceThreshold, overallThreshold float64, weights domain.ConfidenceWeights) *ConfidenceEngine {
	total := weights.Semantic + weights.Retrieval + weights.Citations + weights.Coverage
	if math.Abs(total-1.0) > 0.01 {
		panic("verifier: confidence weights must sum to 1.0")
	}
	return &ConfidenceEngine{sentenceThreshold: sentenceThreshold, overallThreshold: overallThreshold, weights: weights}
}

// calculateSemanticScore averages sentence scores, penalized by variance
// and by the fraction of scores below sentenceThreshold.
func (e *ConfidenceEngine) calculateSemanticScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	avg := mean(scores)
	if len(scores) > 1 {
		avg -= math.Min(0.15, variance(scores)*0.5)
	}

	lowCount := 0
	for _, s := range scores {
		if s < e.sentenceThreshold {
			lowCount++
		}
	}
	lowRatio := float64(lowCount) / float64(len(scores))
	avg -= lowRatio * 0.20

	return math.Max(0, avg)
}

// calculateRetrievalScore averages the top-3 retrieval similarities, or
// all of them if fewer than 3 are present, or 0.5 if none.
func (e *ConfidenceEngine) calculateRetrievalScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.5
	}

	sorted := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if len(sorted) > 3 {
		sorted = sorted[:3]
	}
	return mean(sorted)
}

// calculateCitationScore follows the diminishing-returns curve: 0.3 with
// none, 0.7 with one, 0.85 with two, then +0.05 per extra citation capped at 1.
func (e *ConfidenceEngine) calculateCitationScore(hasCitations bool, count int) float64 {
	if !hasCitations {
		return 0.3
	}
	switch count {
	case 1:
		return 0.7
	case 2:
		return 0.85
	default:
		return math.Min(1.0, 0.85+float64(count-2)*0.05)
	}
}

func (e *ConfidenceEngine) calculateCoverageScore(verified, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(verified) / float64(total)
}

// Calculate fuses all four signals into a final confidence in [0,1].
func (e *ConfidenceEngine) Calculate(signals VerificationSignals) ConfidenceBreakdown {
	semantic := e.calculateSemanticScore(signals.SentenceScores)
	retrieval := e.calculateRetrievalScore(signals.RetrievalScores)
	citations := e.calculateCitationScore(signals.HasCitations, signals.CitationCount)

	verifiedCount := 0
	for _, s := range signals.SentenceScores {
		if s >= e.sentenceThreshold {
			verifiedCount++
		}
	}
	coverage := e.calculateCoverageScore(verifiedCount, len(signals.SentenceScores))

	confidence := semantic*e.weights.Semantic +
		retrieval*e.weights.Retrieval +
		citations*e.weights.Citations +
		coverage*e.weights.Coverage
	confidence = math.Max(0, math.Min(1, confidence))

	return ConfidenceBreakdown{
		Semantic:   semantic,
		Retrieval:  retrieval,
		Citations:  citations,
		Coverage:   coverage,
		Confidence: confidence,
		Verified:   confidence >= e.overallThreshold,
	}
}

// TrustLabel derives the label for a computed confidence.
func (e *ConfidenceEngine) TrustLabel(confidence float64) domain.TrustLabel {
	return domain.TrustLabelFor(confidence, e.overallThreshold)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is the sample variance (n-1 denominator), matching Python's
// statistics.variance used by the reference implementation.
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return sumSq / float64(len(xs)-1)
}
