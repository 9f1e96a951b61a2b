// Package ocr adapts a remote OCR microservice to the driven.OCRClient
// contract. The wire format is a black box to the rest of the core; only
// IsAvailable and Process are exercised.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
)

var _ driven.OCRClient = (*Client)(nil)

// Client calls a remote OCR HTTP endpoint with the same request shape as
// the embedding and LLM adapters. Each call makes a single request; failed
// requests are not retried and there is no backoff.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a Client pointed at an OCR service base URL.
func New(baseURL, apiKey string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: 180 * time.Second}}
}

// IsAvailable pings the OCR service's health endpoint.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ocrRequest struct {
	DocumentBase64    string `json:"documentBase64"`
	EnableHandwriting bool   `json:"enableHandwriting"`
	RequestID         string `json:"requestId"`
}

type ocrResponse struct {
	Text       string  `json:"text"`
	PageCount  int     `json:"pageCount"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// Process submits a scanned PDF for text extraction.
func (c *Client) Process(ctx context.Context, pdfBytes []byte, enableHandwriting bool, requestID string) (driven.OCRDocumentResult, error) {
	reqBody := ocrRequest{
		DocumentBase64:    base64.StdEncoding.EncodeToString(pdfBytes),
		EnableHandwriting: enableHandwriting,
		RequestID:         requestID,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return driven.OCRDocumentResult{}, fmt.Errorf("ocr: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return driven.OCRDocumentResult{}, fmt.Errorf("ocr: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return driven.OCRDocumentResult{}, fmt.Errorf("ocr: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return driven.OCRDocumentResult{}, fmt.Errorf("ocr: read response: %w", err)
	}

	var ocrResp ocrResponse
	if err := json.Unmarshal(raw, &ocrResp); err != nil {
		return driven.OCRDocumentResult{}, fmt.Errorf("ocr: parse response: %w", err)
	}
	if ocrResp.Error != "" {
		return driven.OCRDocumentResult{}, fmt.Errorf("ocr: %s", ocrResp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return driven.OCRDocumentResult{}, fmt.Errorf("ocr: status %d", resp.StatusCode)
	}

	return driven.OCRDocumentResult{
		Text:       ocrResp.Text,
		PageCount:  ocrResp.PageCount,
		Confidence: ocrResp.Confidence,
	}, nil
}
