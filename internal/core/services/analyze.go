package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/legalrag-core/internal/adapters/driven/postgres"
	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driving"
	"github.com/custodia-labs/legalrag-core/internal/pii"
	"github.com/custodia-labs/legalrag-core/internal/retriever"
	"github.com/custodia-labs/legalrag-core/internal/verifier"
)

// queryContextBoundary separates query text from context text inside the
// single string handed to Anonymizer.Anonymize, so both share one PII
// mapping (and one entity count) instead of two independent ones that
// would overwrite each other under the same requestID key.
const queryContextBoundary = "\n\x00QUERY_CONTEXT_BOUNDARY\x00\n"

// AnalyzeConfig tunes retrieval breadth and the auto-retry widening step.
type AnalyzeConfig struct {
	DefaultTopK int
	MaxTopK     int

	MatchThreshold float64

	RetryTopKStep int
}

// DefaultAnalyzeConfig matches spec §6 defaults.
func DefaultAnalyzeConfig() AnalyzeConfig {
	return AnalyzeConfig{
		DefaultTopK:    5,
		MaxTopK:        20,
		MatchThreshold: 0.70,
		RetryTopKStep:  5,
	}
}

// Analyzer implements driving.AnalyzeService: retrieve -> anonymize ->
// generate -> de-anonymize -> verify -> fingerprint.
type Analyzer struct {
	cfg         AnalyzeConfig
	db          *postgres.DB
	retriever   *retriever.Retriever
	anonymizer  *pii.Anonymizer
	llm         driven.LLMClient
	verifier    *verifier.Verifier
	fingerprint *verifier.FingerprintTracker
	logger      *slog.Logger
}

var _ driving.AnalyzeService = (*Analyzer)(nil)

// NewAnalyzer wires an Analyzer from its dependencies. fingerprint must be
// the same tracker passed into verifier.New, since Analyzer uses it
// directly to index verification records by document for history lookups.
func NewAnalyzer(cfg AnalyzeConfig, db *postgres.DB, retr *retriever.Retriever, anonymizer *pii.Anonymizer,
	llm driven.LLMClient, v *verifier.Verifier, fingerprint *verifier.FingerprintTracker, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cfg:         cfg,
		db:          db,
		retriever:   retr,
		anonymizer:  anonymizer,
		llm:         llm,
		verifier:    v,
		fingerprint: fingerprint,
		logger:      logger,
	}
}

// Analyze runs the full question-answering pipeline for one request.
func (a *Analyzer) Analyze(ctx context.Context, req driving.AnalyzeRequest) (driving.AnalyzeResponse, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return driving.AnalyzeResponse{}, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidInput)
	}

	doc, err := a.getDocument(ctx, req.DocID)
	if err != nil {
		return driving.AnalyzeResponse{}, err
	}
	if doc.UserID != req.UserID || !doc.IsRetrievable() {
		return driving.AnalyzeResponse{}, domain.ErrNotFound
	}

	topK := req.TopK
	if topK <= 0 {
		topK = a.cfg.DefaultTopK
	}
	if topK > a.cfg.MaxTopK {
		topK = a.cfg.MaxTopK
	}

	sources, err := a.retriever.Retrieve(ctx, req.Query, req.DocID, topK, a.cfg.MatchThreshold)
	if err != nil {
		return driving.AnalyzeResponse{}, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	contextText := retriever.FormatContext(sources)
	anonQuery, anonContext, entityCount, err := a.anonymizeTurn(ctx, req.Query, contextText, requestID)
	if err != nil {
		return driving.AnalyzeResponse{}, err
	}

	result, err := a.llm.Analyze(ctx, anonQuery, anonContext, requestID)
	if err != nil {
		return driving.AnalyzeResponse{}, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}

	answer, err := a.anonymizer.Deanonymize(ctx, result.Answer, requestID)
	if err != nil {
		return driving.AnalyzeResponse{}, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}

	verificationID := uuid.NewString()
	refetch := a.refetcher(req.DocID, req.Query, topK)
	verdict, err := a.verifier.Verify(ctx, verificationID, answer, sources, refetch)
	if err != nil {
		return driving.AnalyzeResponse{}, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	a.fingerprint.AssociateDocument(verificationID, req.DocID)

	var unsupported []string
	for _, s := range verdict.Sentences {
		if !s.Verified {
			unsupported = append(unsupported, s.Sentence)
		}
	}

	return driving.AnalyzeResponse{
		Answer:            answer,
		Citations:         verdict.Citations,
		Confidence:        verdict.Confidence,
		TrustLabel:        verdict.TrustLabel,
		RequestID:         requestID,
		UnsupportedClaims: unsupported,
		Metadata: driving.AnalyzeMetadata{
			LatencyMs:             time.Since(start).Milliseconds(),
			TokensUsed:            result.TokensUsed,
			ChunksRetrieved:       len(sources),
			ModelVersion:          result.ModelVersion,
			PIIEntitiesAnonymized: entityCount,
		},
	}, nil
}

// anonymizeTurn anonymizes query and context together under one mapping so
// PIIEntitiesAnonymized reflects the true combined span count instead of
// the last of two independent Anonymize calls clobbering the first.
func (a *Analyzer) anonymizeTurn(ctx context.Context, query, contextText, requestID string) (anonQuery, anonContext string, entityCount int, err error) {
	combined := query + queryContextBoundary + contextText
	anonCombined, mapping, err := a.anonymizer.Anonymize(ctx, combined, requestID)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}

	if !a.anonymizer.VerifyNoLeakage(anonCombined) {
		return "", "", 0, domain.ErrPIILeakage
	}

	parts := strings.SplitN(anonCombined, queryContextBoundary, 2)
	anonQuery = parts[0]
	if len(parts) > 1 {
		anonContext = parts[1]
	}
	return anonQuery, anonContext, len(mapping), nil
}

// refetcher builds the verifier's auto-retry callback: widen topK and
// re-run retrieval against the same query and document.
func (a *Analyzer) refetcher(docID, query string, topK int) verifier.RefetchSources {
	return func(ctx context.Context, answer string, confidence float64) ([]domain.RetrievalResult, error) {
		widened := topK + a.cfg.RetryTopKStep
		if widened > a.cfg.MaxTopK {
			widened = a.cfg.MaxTopK
		}
		if widened <= topK {
			return nil, nil
		}
		topK = widened
		return a.retriever.Retrieve(ctx, query, docID, widened, a.cfg.MatchThreshold)
	}
}

func (a *Analyzer) getDocument(ctx context.Context, docID string) (domain.Document, error) {
	var doc domain.Document
	var status string
	err := a.db.QueryRowContext(ctx,
		`SELECT user_id, filename, doc_hash, size_bytes, status, created_at FROM documents WHERE doc_id = $1`,
		docID,
	).Scan(&doc.UserID, &doc.Filename, &doc.DocHash, &doc.SizeBytes, &status, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Document{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	doc.DocID = docID
	doc.Status = domain.DocumentStatus(status)
	return doc, nil
}

// HistoryConfig bounds the record count a single history call returns.
type HistoryConfig struct {
	MaxLimit int
}

// DefaultHistoryConfig matches spec §6 defaults.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{MaxLimit: 100}
}

// History implements driving.HistoryService by listing verification
// records the FingerprintTracker has associated with a document, newest
// first. The returned records never carry query or answer text.
type History struct {
	cfg         HistoryConfig
	db          *postgres.DB
	fingerprint *verifier.FingerprintTracker
}

var _ driving.HistoryService = (*History)(nil)

// NewHistory wires a History service. fingerprint must be the same tracker
// the Analyzer uses, since that is where verification-to-document
// associations are recorded.
func NewHistory(cfg HistoryConfig, db *postgres.DB, fingerprint *verifier.FingerprintTracker) *History {
	return &History{cfg: cfg, db: db, fingerprint: fingerprint}
}

// History returns up to limit audit records for docID, most recent first.
func (h *History) History(ctx context.Context, docID string, limit int) ([]driving.AuditRecord, error) {
	if limit <= 0 || limit > h.cfg.MaxLimit {
		limit = h.cfg.MaxLimit
	}

	var exists bool
	if err := h.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE doc_id = $1)`, docID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	records := h.fingerprint.ListByDocument(docID, limit)
	out := make([]driving.AuditRecord, len(records))
	for i, r := range records {
		out[i] = driving.AuditRecord{
			VerificationID: r.VerificationID,
			Confidence:     r.Confidence,
			TrustLabel:     r.TrustLabel,
			CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
			IsValid:        r.IsValid,
		}
	}
	return out, nil
}
