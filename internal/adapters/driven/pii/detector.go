// Package pii provides the default regex-based PIIDetector. Detection
// quality is explicitly a pluggable concern (spec Non-goals) — this
// adapter trades recall for zero external dependencies, grounded on the
// pattern-table approach in laplaque-ai-anonymizing-proxy's Anonymizer,
// adapted from that proxy's text-rewriting contract to a span-returning one.
package pii

import (
	"regexp"
	"sort"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

type pattern struct {
	re   *regexp.Regexp
	kind domain.PIIKind
}

// Detector is a regex-table PIIDetector. Patterns are evaluated in a fixed
// order and matches are de-overlapped by keeping the earliest, longest span.
type Detector struct {
	patterns []pattern
}

// New compiles the default pattern table.
func New() *Detector {
	specs := []struct {
		expr string
		kind domain.PIIKind
	}{
		{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, domain.PIIKindEmail},
		{`\b[A-Z]{2}\d{2}[A-Z0-9]{1,30}\b`, domain.PIIKindIBAN},
		{`\b(?:\d{4}[\-\s]?){3}\d{4}\b`, domain.PIIKindCard},
		{`(\+?\d{1,3}[\-.\s]?)?\(?\d{3}\)?[\-.\s]?\d{3}[\-.\s]?\d{4}\b`, domain.PIIKindPhone},
		{`(?i)\b\d+\s+[A-Za-z\s]+(?:Straße|Strasse|Weg|Platz|Street|Avenue|Road)\b`, domain.PIIKindAddress},
		{`\b[A-ZÄÖÜ][a-zäöüß]+\s[A-ZÄÖÜ][a-zäöüß]+\b`, domain.PIIKindPerson},
	}

	d := &Detector{}
	for _, s := range specs {
		d.patterns = append(d.patterns, pattern{re: regexp.MustCompile(s.expr), kind: s.kind})
	}
	return d
}

// Detect returns non-overlapping spans in document order.
func (d *Detector) Detect(text string) []domain.PIISpan {
	var spans []domain.PIISpan
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			spans = append(spans, domain.PIISpan{
				Start: loc[0],
				End:   loc[1],
				Kind:  p.kind,
				Value: text[loc[0]:loc[1]],
			})
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})

	var result []domain.PIISpan
	lastEnd := -1
	for _, s := range spans {
		if s.Start < lastEnd {
			continue
		}
		result = append(result, s)
		lastEnd = s.End
	}
	return result
}
