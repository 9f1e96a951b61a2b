package domain

import "github.com/google/uuid"

// NewID generates a new random UUID, used for Document, request, and
// verification identifiers.
func NewID() string {
	return uuid.NewString()
}
