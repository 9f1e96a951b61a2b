package parser

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
)

// ChunkerConfig bounds chunk size and split overlap.
type ChunkerConfig struct {
	MaxChunkSize int
	ChunkOverlap int
}

// DefaultChunkerConfig matches spec §6 defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{MaxChunkSize: 1600, ChunkOverlap: 100}
}

// Chunker splits Sections into embedding-ready Chunks, generalizing the
// teacher's PostProcessor sliding-window-plus-overlap approach
// (internal/postprocessors.Chunker.splitContent/findBreakPoint) into a
// section-aware splitter that snaps cuts to sentence boundaries.
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker creates a Chunker with the given config.
func NewChunker(cfg ChunkerConfig) *Chunker {
	return &Chunker{cfg: cfg}
}

// Chunk converts a Section list into Chunks. Position numbers are assigned
// in document-then-split order and are unique within docID.
func (c *Chunker) Chunk(sections []domain.Section, docID string) []domain.Chunk {
	sectionIDByPosition := make(map[int]string, len(sections))
	for _, sec := range sections {
		sectionIDByPosition[sec.Position] = sec.ID
	}

	var chunks []domain.Chunk
	position := 0

	for _, sec := range sections {
		var parentID string
		if sec.HasParent() {
			if parentSectionID, ok := sectionIDByPosition[*sec.ParentPosition]; ok {
				parentID = stableChunkID(docID, parentSectionID, 0)
			}
		}

		if len(sec.Content) <= c.cfg.MaxChunkSize {
			chunks = append(chunks, domain.Chunk{
				ChunkID:   stableChunkID(docID, sec.ID, 0),
				DocID:     docID,
				SectionID: sec.ID,
				ParentID:  parentID,
				Content:   sec.Content,
				Position:  position,
				Metadata:  metadataFor(sec.Content, false, 0),
			})
			position++
			continue
		}

		splits := c.splitSection(sec.Content)
		for splitIndex, content := range splits {
			chunks = append(chunks, domain.Chunk{
				ChunkID:   stableChunkID(docID, sec.ID, splitIndex),
				DocID:     docID,
				SectionID: fmt.Sprintf("%s_%d", sec.ID, splitIndex),
				ParentID:  parentID,
				Content:   content,
				Position:  position,
				Metadata:  metadataFor(content, true, splitIndex),
			})
			position++
		}
	}

	return chunks
}

// splitSection walks a sliding window of MaxChunkSize with ChunkOverlap
// overlap. Every cut before the end of content snaps back to just past the
// last ". " within the current window; if none exists, the raw cut is
// kept, even inside a word (spec §4.1).
func (c *Chunker) splitSection(content string) []string {
	var out []string
	start := 0

	for start < len(content) {
		end := start + c.cfg.MaxChunkSize
		if end > len(content) {
			end = len(content)
		}

		if end < len(content) {
			if snapped := snapToSentence(content, start, end); snapped > start {
				end = snapped
			}
		}

		out = append(out, content[start:end])

		if end >= len(content) {
			break
		}

		nextStart := end - c.cfg.ChunkOverlap
		if nextStart <= start {
			nextStart = start + 1
		}
		start = nextStart
	}

	return out
}

// snapToSentence looks backward from end, within [start, end), for the
// last ". " and returns the offset just past it. Returns -1 when none is
// found, signalling the caller to keep the raw cut.
func snapToSentence(content string, start, end int) int {
	window := content[start:end]
	idx := strings.LastIndex(window, ". ")
	if idx == -1 {
		return -1
	}
	return start + idx + 2
}

func metadataFor(content string, isSplit bool, splitIndex int) domain.ChunkMetadata {
	return domain.ChunkMetadata{
		CharCount:  len(content),
		WordCount:  len(strings.Fields(content)),
		IsSplit:    isSplit,
		SplitIndex: splitIndex,
	}
}
