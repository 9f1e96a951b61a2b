package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// stableChunkID hashes docID+sectionID+splitIndex into a stable chunk
// identifier: the same inputs always produce the same ID, so re-indexing
// an unchanged document reproduces identical chunk identities.
func stableChunkID(docID, sectionID string, splitIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", docID, sectionID, splitIndex)))
	return hex.EncodeToString(sum[:16])
}
