package verifier

import "github.com/custodia-labs/legalrag-core/internal/parser"

// CitationExtractor recognizes legal citations in prose. It is pluggable
// by domain — the default implementation reuses the parser's marker table
// (spec §4.4), since a citation in a generated answer and a section marker
// in source text are the same surface syntax.
type CitationExtractor interface {
	Extract(text string) []string
}

// MarkerCitationExtractor is the default CitationExtractor, grounded on
// internal/parser.ExtractSectionIDs.
type MarkerCitationExtractor struct{}

// NewMarkerCitationExtractor creates the default extractor.
func NewMarkerCitationExtractor() *MarkerCitationExtractor {
	return &MarkerCitationExtractor{}
}

// Extract returns the unique legal markers found in text.
func (MarkerCitationExtractor) Extract(text string) []string {
	return parser.ExtractSectionIDs(text)
}
