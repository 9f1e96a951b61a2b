package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProcessReturnsExtractedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ocr":
			_ = json.NewEncoder(w).Encode(ocrResponse{Text: "extracted legal text", PageCount: 3, Confidence: 0.97})
		case "/health":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	if !c.IsAvailable(context.Background()) {
		t.Fatal("expected service to report available")
	}

	result, err := c.Process(context.Background(), []byte("%PDF-fake"), false, "req1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Text != "extracted legal text" || result.PageCount != 3 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestIsAvailableFalseOnUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", "")
	if c.IsAvailable(context.Background()) {
		t.Error("expected unreachable service to report unavailable")
	}
}

func TestProcessErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ocrResponse{Error: "unsupported format"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.Process(context.Background(), []byte("x"), false, "req2"); err == nil {
		t.Error("expected error from OCR error response")
	}
}
