package verifier

import (
	"regexp"
	"strings"
)

// minSentenceLength is the shortest fragment treated as a sentence.
const minSentenceLength = 3

var sentenceTerminator = regexp.MustCompile(`(?s)([.!?])\s+`)

var abbreviations = []string{"z.B.", "d.h.", "u.a.", "Art.", "Abs.", "Nr.", "Ziff.", "lit."}

// abbreviationGuard is a sentinel unlikely to occur in legal prose, used to
// hide abbreviation periods from the sentence-terminator regex.
const abbreviationGuard = "\x00"

// Sentence is one split result with its offsets into the
// whitespace-collapsed text Split works on (not the raw input) and whether
// it carries a legal citation.
type Sentence struct {
	Text        string
	Start, End  int
	HasCitation bool
}

// Splitter produces sentences with offsets from an answer text. The
// regex-based fallback is the only tier implemented here — spec §4.4 calls
// for a "language-and-domain-aware" primary splitter where available, but
// none of the teacher's or pack's dependencies provide one for German
// legal prose, so the deterministic fallback is the sole implementation.
type Splitter struct {
	citations CitationExtractor
}

// NewSplitter creates a Splitter that tags citations using extractor.
func NewSplitter(extractor CitationExtractor) *Splitter {
	return &Splitter{citations: extractor}
}

// Split normalizes abbreviations and whitespace, then splits on
// sentence-terminal punctuation followed by whitespace. Fragments shorter
// than minSentenceLength are dropped.
func (s *Splitter) Split(text string) []Sentence {
	normalized := normalizeForSplit(text)
	if normalized == "" {
		return nil
	}

	var sentences []Sentence
	cursor := 0
	for _, loc := range sentenceTerminator.FindAllStringIndex(normalized, -1) {
		end := loc[0] + 1 // keep the terminal punctuation, drop trailing whitespace
		if trimmed := strings.TrimSpace(unguard(normalized[cursor:end])); len(trimmed) >= minSentenceLength {
			sentences = append(sentences, s.build(trimmed, cursor, end))
		}
		cursor = loc[1]
	}
	if tail := strings.TrimSpace(unguard(normalized[cursor:])); len(tail) >= minSentenceLength {
		sentences = append(sentences, s.build(tail, cursor, len(normalized)))
	}
	return sentences
}

func (s *Splitter) build(text string, start, end int) Sentence {
	hasCitation := false
	if s.citations != nil {
		hasCitation = len(s.citations.Extract(text)) > 0
	}
	return Sentence{Text: text, Start: start, End: end, HasCitation: hasCitation}
}

// normalizeForSplit collapses whitespace and protects known abbreviation
// periods from being mistaken for sentence terminators.
func normalizeForSplit(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")

	guarded := collapsed
	for _, abbr := range abbreviations {
		hidden := strings.ReplaceAll(abbr, ".", abbreviationGuard)
		guarded = strings.ReplaceAll(guarded, abbr, hidden)
	}
	return guarded
}

// unguard restores abbreviation periods hidden by normalizeForSplit.
func unguard(text string) string {
	return strings.ReplaceAll(text, abbreviationGuard, ".")
}
