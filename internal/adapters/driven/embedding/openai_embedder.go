// Package embedding adapts an OpenAI-compatible embeddings API to the
// driven.Embedder contract.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
)

var _ driven.Embedder = (*Embedder)(nil)

// modelDimensions maps known embedding models to their output dimension,
// so Dim() is answerable without a round trip.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Embedder calls an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	apiKey  string
	model   string
	baseURL string
	dim     int
	client  *http.Client
}

// New creates an Embedder. baseURL defaults to the OpenAI API; model
// defaults to text-embedding-3-small.
func New(apiKey, model, baseURL string) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: api key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	dim, ok := modelDimensions[model]
	if !ok {
		dim = 1536
	}

	return &Embedder{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		dim:     dim,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Dim returns the embedding dimension this Embedder produces.
func (e *Embedder) Dim() int { return e.dim }

// EmbedOne embeds a single piece of text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrExternalUnavailable)
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple texts in one request, preserving order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{Input: texts, Model: e.model, EncodingFormat: "float"}
	resp, err := e.doRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}

type embeddingRequest struct {
	Input          interface{} `json:"input"`
	Model          string      `json:"model"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (e *Embedder) doRequest(ctx context.Context, reqBody embeddingRequest) (*embeddingResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: rate limited", domain.ErrQuotaRate)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(raw, &embResp); err != nil {
		return nil, fmt.Errorf("embedding: parse response: %w", err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrExternalUnavailable, embResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrExternalUnavailable, resp.StatusCode)
	}

	return &embResp, nil
}
