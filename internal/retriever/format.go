package retriever

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// FormatContext concatenates retrieval results into an LLM-ready context
// block: a section header, parent block if present, the target block, up
// to MaxSiblings sibling blocks truncated to SiblingTruncateLen characters
// each, and a similarity footer. Deterministic for identical inputs.
func FormatContext(results []domain.RetrievalResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Section %s]\n", r.SectionID)
		if r.ParentContent != nil {
			fmt.Fprintf(&b, "Context: %s\n", *r.ParentContent)
		}
		fmt.Fprintf(&b, "%s\n", r.Content)

		siblings := r.SiblingContents
		if len(siblings) > domain.MaxSiblings {
			siblings = siblings[:domain.MaxSiblings]
		}
		for _, s := range siblings {
			fmt.Fprintf(&b, "Related: %s\n", truncate(s, domain.SiblingTruncateLen))
		}
		fmt.Fprintf(&b, "(similarity: %.4f)", r.Similarity)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
