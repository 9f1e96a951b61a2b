package domain

import "time"

// DocumentStatus is the lifecycle state of an uploaded document.
type DocumentStatus string

const (
	DocumentStatusActive  DocumentStatus = "active"
	DocumentStatusDeleted DocumentStatus = "deleted"
)

// Document is a user-uploaded (or crawled) source file. DocHash is the
// SHA-256 of the raw bytes and must be unique per user — re-uploading the
// same bytes is a duplicate, not a new document.
type Document struct {
	DocID     string            `json:"docId"`
	UserID    string            `json:"userId"`
	Filename  string            `json:"filename"`
	DocHash   string            `json:"docHash"`
	SizeBytes int64             `json:"sizeBytes"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Status    DocumentStatus    `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

// IsRetrievable reports whether this document's chunks may be served by
// the retriever. Soft-deleted documents are excluded.
func (d Document) IsRetrievable() bool {
	return d.Status == DocumentStatusActive
}
