// Package llm adapts an OpenAI-compatible chat-completions API to the
// driven.LLMClient contract.
package llm

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

var _ driven.LLMClient = (*Client)(nil)

// systemPrompt instructs the model to answer strictly from the supplied
// context and to cite section markers, matching the verifier's
// expectations downstream.
const systemPrompt = "You are a legal document assistant. Answer only using the provided context. Cite section markers (e.g. § 5, Art. 3 Abs. 2) for every claim you make. If the context does not support an answer, say so explicitly."

// Client calls an OpenAI-compatible /chat/completions endpoint. It never
// receives raw PII — callers anonymize anonQuery/anonContext before
// calling Analyze.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// New creates a Client. baseURL defaults to the OpenAI API; model
// defaults to gpt-4o-mini.
func New(apiKey, model, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{apiKey: apiKey, model: model, baseURL: baseURL, client: &http.Client{Timeout: 120 * time.Second}}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze sends the anonymized query and context to the chat-completion
// endpoint and returns the generated (still-anonymized) answer.
func (c *Client) Analyze(ctx context.Context, anonQuery, anonContext, requestID string) (driven.AnalyzeResult, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", anonContext, anonQuery)},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return driven.AnalyzeResult{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return driven.AnalyzeResult{}, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return driven.AnalyzeResult{}, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return driven.AnalyzeResult{}, fmt.Errorf("llm: read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return driven.AnalyzeResult{}, fmt.Errorf("llm: parse response: %w", err)
	}

	if chatResp.Error != nil {
		return driven.AnalyzeResult{}, fmt.Errorf("%w: %s", domain.ErrExternalUnavailable, chatResp.Error.Message)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return driven.AnalyzeResult{}, fmt.Errorf("%w: rate limited", domain.ErrQuotaRate)
	}
	if resp.StatusCode != http.StatusOK {
		return driven.AnalyzeResult{}, fmt.Errorf("%w: status %d", domain.ErrExternalUnavailable, resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return driven.AnalyzeResult{}, fmt.Errorf("%w: no choices returned", domain.ErrExternalUnavailable)
	}

	return driven.AnalyzeResult{
		Answer:       chatResp.Choices[0].Message.Content,
		TokensUsed:   chatResp.Usage.TotalTokens,
		ModelVersion: chatResp.Model,
	}, nil
}
