package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
)

// ChunkMetadata carries derived, non-essential facts about a Chunk's text.
type ChunkMetadata struct {
	CharCount  int  `json:"charCount"`
	WordCount  int  `json:"wordCount"`
	IsSplit    bool `json:"isSplit,omitempty"`
	SplitIndex int  `json:"splitIndex,omitempty"`
}

// Chunk is an embedding-ready slice of a Section's content. ChunkID is a
// stable hash of docID+sectionID+splitIndex so re-indexing the same
// document reproduces the same chunk identities. Embedding is attached by
// the Embedder after the Chunker produces the chunk; it is never mutated
// afterward — a re-index replaces all chunks for a docID.
type Chunk struct {
	ChunkID      string        `json:"chunkId"`
	DocID        string        `json:"docId"`
	SectionID    string        `json:"sectionId"`
	ParentID     string        `json:"parentId,omitempty"`
	Content      string        `json:"content"`
	Position     int           `json:"position"`
	Metadata     ChunkMetadata `json:"metadata"`
	Embedding    []float32     `json:"embedding,omitempty"`
}

// NumericID derives the stable numeric vector-store identifier for this
// chunk: the first 16 hex characters of md5(ChunkID) interpreted as a
// base-16 integer. Collision probability is negligible across realistic
// corpus sizes and is the same scheme the ingestion pipeline uses on
// upsert (see internal/ingestion).
func (c Chunk) NumericID() uint64 {
	return ChunkNumericID(c.ChunkID)
}

// ChunkNumericID hashes a chunkID to the stable numeric ID vector stores
// require. Defined standalone so the ingestion pipeline can compute it
// without constructing a full Chunk.
func ChunkNumericID(chunkID string) uint64 {
	sum := md5.Sum([]byte(chunkID))
	hexStr := hex.EncodeToString(sum[:])[:16]
	n, _ := strconv.ParseUint(hexStr, 16, 64)
	return n
}
