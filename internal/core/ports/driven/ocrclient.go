package driven

import "context"

// OCRDocumentResult is the text and layout OCR extracted from a scanned
// document.
type OCRDocumentResult struct {
	Text       string
	PageCount  int
	Confidence float64
}

// OCRClient is the remote, black-box OCR service consumed by the indexer
// before a scanned document reaches the Parser. The core treats it
// opaquely — only IsAvailable/Process are used.
type OCRClient interface {
	IsAvailable(ctx context.Context) bool
	Process(ctx context.Context, pdfBytes []byte, enableHandwriting bool, requestID string) (OCRDocumentResult, error)
}
