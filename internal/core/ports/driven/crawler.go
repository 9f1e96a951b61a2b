package driven

import (
	"context"
	"time"
)

// Record is a crawler's normalized output — the only shape the core
// depends on. Wire formats of individual providers (GitHub, EUR-Lex,
// OpenLegalData, ...) are out of scope; a Crawler adapter is responsible
// for translating its own source format into this.
type Record struct {
	ExternalID  string
	Filename    string
	MimeType    string
	Content     []byte
	CreatedDate time.Time
}

// Crawler fetches corpus records created at or after `since`, returning
// them along with a cursor to persist for the next incremental run.
type Crawler interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]Record, time.Time, error)
}

// CrawlerFactory selects a Crawler implementation by name. It is the
// registry/lookup shape ingestion sources are resolved through.
type CrawlerFactory interface {
	Create(name string) (Crawler, error)
}
