// Package pii anonymizes text crossing the LLM boundary and restores the
// original values afterward, per spec §4.3.
package pii

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
)

// Anonymizer replaces detected PII spans with stable per-request
// placeholders and restores them afterward. It is pure with respect to
// its input text: identical text produces identical anonymized output and
// an equivalent mapping, modulo requestID.
type Anonymizer struct {
	detector driven.PIIDetector
	kv       driven.KVStore
	ttl      time.Duration
}

// New creates an Anonymizer backed by the given detector and mapping store.
func New(detector driven.PIIDetector, kv driven.KVStore, mappingTTL time.Duration) *Anonymizer {
	return &Anonymizer{detector: detector, kv: kv, ttl: mappingTTL}
}

func mappingKey(requestID string) string {
	return "pii:" + requestID
}

// Anonymize detects PII in text and replaces every span with a
// <KIND_n>-form placeholder, left to right. Identical values within the
// same call share the same placeholder. The resulting mapping is
// persisted under pii:<requestId> with a short TTL; store failure is
// fatal for the request.
func (a *Anonymizer) Anonymize(ctx context.Context, text, requestID string) (string, domain.PIIMapping, error) {
	spans := a.detector.Detect(text)
	if len(spans) == 0 {
		return text, domain.PIIMapping{}, nil
	}

	mapping := domain.PIIMapping{}
	placeholderByValue := make(map[string]string)
	ordinalByKind := make(map[domain.PIIKind]int)

	var b strings.Builder
	cursor := 0
	for _, span := range spans {
		b.WriteString(text[cursor:span.Start])

		placeholder, known := placeholderByValue[span.Value]
		if !known {
			ordinalByKind[span.Kind]++
			placeholder = fmt.Sprintf("<%s_%d>", span.Kind, ordinalByKind[span.Kind])
			placeholderByValue[span.Value] = placeholder
			mapping[placeholder] = span.Value
		}
		b.WriteString(placeholder)
		cursor = span.End
	}
	b.WriteString(text[cursor:])

	payload, err := json.Marshal(mapping)
	if err != nil {
		return "", nil, fmt.Errorf("pii: marshal mapping: %w", err)
	}
	if err := a.kv.SetEx(ctx, mappingKey(requestID), a.ttl, payload); err != nil {
		return "", nil, fmt.Errorf("pii: persist mapping: %w", err)
	}

	return b.String(), mapping, nil
}

// Deanonymize replaces every placeholder in text with its original value,
// tolerating placeholders absent from the mapping. The mapping key is
// deleted after a successful call.
func (a *Anonymizer) Deanonymize(ctx context.Context, text, requestID string) (string, error) {
	raw, ok, err := a.kv.Get(ctx, mappingKey(requestID))
	if err != nil {
		return "", fmt.Errorf("pii: load mapping: %w", err)
	}
	if !ok {
		return text, nil
	}

	var mapping domain.PIIMapping
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return "", fmt.Errorf("pii: unmarshal mapping: %w", err)
	}

	result := text
	for placeholder, value := range mapping {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if err := a.kv.Del(ctx, mappingKey(requestID)); err != nil {
		return "", fmt.Errorf("pii: delete mapping: %w", err)
	}
	return result, nil
}

// VerifyNoLeakage re-runs detection on already-anonymized text. A false
// result must abort the analyze pipeline before any LLM call.
func (a *Anonymizer) VerifyNoLeakage(anonymizedText string) bool {
	return len(a.detector.Detect(anonymizedText)) == 0
}
