package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driving"
	"github.com/custodia-labs/legalrag-core/internal/metrics"
)

// IndexResponse is the body of a successful POST /v1/index.
type IndexResponse struct {
	DocumentID    string `json:"documentId"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunksCreated"`
	Status        string `json:"status"`
}

// handleIndex godoc
// @Summary      Index a document
// @Description  Accepts a multipart file upload, normalizes, chunks, embeds, and stores it
// @Tags         Index
// @Accept       multipart/form-data
// @Produce      json
// @Success      200  {object}  IndexResponse
// @Failure      400  {object}  ErrorResponse  "malformed upload"
// @Failure      409  {object}  ErrorResponse  "duplicate document"
// @Failure      413  {object}  ErrorResponse  "file too large"
// @Failure      429  {object}  ErrorResponse  "quota or rate limit exceeded"
// @Router       /v1/index [post]
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := readUploadedFile(r)
	if err != nil {
		if errors.Is(err, multipart.ErrMessageTooLarge) || isRequestTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(header.Filename)
	}

	result, err := s.indexer.Index(r.Context(), driving.IndexRequest{
		UserID:   UserIDFromContext(r.Context()),
		Filename: header.Filename,
		MimeType: mimeType,
		Content:  content,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IndexResponse{
		DocumentID:    result.Document.DocID,
		Filename:      result.Document.Filename,
		ChunksCreated: result.ChunksCreated,
		Status:        string(result.Document.Status),
	})
}

func readUploadedFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, nil, err
	}
	return r.FormFile("file")
}

func isRequestTooLarge(err error) bool {
	return err != nil && err.Error() == "http: request body too large"
}

// analyzeRequestBody is the JSON shape POST /v1/analyze accepts.
type analyzeRequestBody struct {
	FileID string `json:"fileId"`
	Query  string `json:"query"`
	TopK   int    `json:"topK"`
}

// AnalyzeResponseBody is the JSON shape POST /v1/analyze returns.
type AnalyzeResponseBody struct {
	Answer            string                  `json:"answer"`
	Citations         []string                `json:"citations"`
	Confidence        float64                 `json:"confidence"`
	RequestID         string                  `json:"requestId"`
	UnsupportedClaims []string                `json:"unsupportedClaims"`
	Metadata          analyzeResponseMetadata `json:"metadata"`
}

type analyzeResponseMetadata struct {
	LatencyMs             int64  `json:"latencyMs"`
	TokensUsed            int    `json:"tokensUsed"`
	ChunksRetrieved       int    `json:"chunksRetrieved"`
	ModelVersion          string `json:"modelVersion"`
	PIIEntitiesAnonymized int    `json:"piiEntitiesAnonymized"`
}

// handleAnalyze godoc
// @Summary      Ask a question about an indexed document
// @Description  Runs retrieve -> anonymize -> LLM -> de-anonymize -> verify and returns a cited answer
// @Tags         Analyze
// @Accept       json
// @Produce      json
// @Success      200  {object}  AnalyzeResponseBody
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse  "document not found"
// @Failure      429  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse  "pii leakage or internal error"
// @Router       /v1/analyze [post]
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := uuid.Parse(body.FileID); err != nil {
		writeError(w, http.StatusBadRequest, "fileId must be a UUID")
		return
	}
	if body.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	requestID := RequestIDFromContext(r.Context())
	resp, err := s.analyzer.Analyze(r.Context(), driving.AnalyzeRequest{
		RequestID: requestID,
		UserID:    UserIDFromContext(r.Context()),
		DocID:     body.FileID,
		Query:     body.Query,
		TopK:      body.TopK,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.AnalyzeConfidence.Observe(resp.Confidence)
	metrics.PIIEntitiesAnonymized.Add(float64(resp.Metadata.PIIEntitiesAnonymized))

	writeJSON(w, http.StatusOK, AnalyzeResponseBody{
		Answer:            resp.Answer,
		Citations:         resp.Citations,
		Confidence:        resp.Confidence,
		RequestID:         resp.RequestID,
		UnsupportedClaims: resp.UnsupportedClaims,
		Metadata: analyzeResponseMetadata{
			LatencyMs:             resp.Metadata.LatencyMs,
			TokensUsed:            resp.Metadata.TokensUsed,
			ChunksRetrieved:       resp.Metadata.ChunksRetrieved,
			ModelVersion:          resp.Metadata.ModelVersion,
			PIIEntitiesAnonymized: resp.Metadata.PIIEntitiesAnonymized,
		},
	})
}

// handleHistory godoc
// @Summary      List audit history for a document
// @Description  Returns past verification records for a document, excluding query/answer text
// @Tags         History
// @Produce      json
// @Param        documentId  path  string  true  "document UUID"
// @Param        limit       query int     false "max records to return"
// @Success      200  {array}   driving.AuditRecord
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/history/{documentId} [get]
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("documentId")
	if _, err := uuid.Parse(docID); err != nil {
		writeError(w, http.StatusBadRequest, "documentId must be a UUID")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.history.History(r.Context(), docID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HealthResponse matches the spec's health-check shape.
type HealthResponse struct {
	Status    string `json:"status"`
	Redis     bool   `json:"redis"`
	Supabase  string `json:"supabase"`
	Timestamp string `json:"timestamp"`
}

// handleHealth godoc
// @Summary      Health check
// @Description  Reports overall and per-dependency health; always returns 200
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /v1/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Supabase: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			resp.Supabase = fmt.Sprintf("unhealthy: %v", err)
			resp.Status = "degraded"
		}
	}

	resp.Redis = true
	if s.redisConn != nil {
		if err := s.redisConn.Ping(r.Context()); err != nil {
			resp.Redis = false
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// CacheClearResponse is the body of a successful POST /admin/cache/clear.
type CacheClearResponse struct {
	ClearedCount int    `json:"clearedCount"`
	Pattern      string `json:"pattern"`
}

// handleCacheClear godoc
// @Summary      Clear cached query results
// @Description  Deletes all KV entries matching pattern (default "*")
// @Tags         Admin
// @Produce      json
// @Param        pattern  query  string  false  "key glob pattern"
// @Success      200  {object}  CacheClearResponse
// @Failure      400  {object}  ErrorResponse  "cache disabled"
// @Router       /admin/cache/clear [post]
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusBadRequest, "cache is disabled")
		return
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	keys, err := s.cache.Keys(r.Context(), pattern)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list cache keys")
		return
	}

	cleared, err := s.cache.DeleteMany(r.Context(), keys)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}

	writeJSON(w, http.StatusOK, CacheClearResponse{ClearedCount: cleared, Pattern: pattern})
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// writeDomainError maps a core error to its HTTP status code. ErrAlreadyExists
// and ErrFileTooLarge get more specific codes than domain.KindOf's generic
// validation bucket; everything else follows the ErrKind mapping in §7.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "document already exists")
		return
	case errors.Is(err, domain.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, "not found")
	case domain.KindQuotaRate:
		writeError(w, http.StatusTooManyRequests, "quota or rate limit exceeded")
	case domain.KindUnavailable:
		writeError(w, http.StatusServiceUnavailable, "upstream service unavailable")
	case domain.KindPIILeakage:
		s.logger.Error("pii leakage detected, aborting response", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		s.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ErrorResponse is the shape of every error body this boundary returns.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
