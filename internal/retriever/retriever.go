// Package retriever turns a natural-language query about one document into
// a ranked, hierarchically-enriched list of RetrievalResult, with a
// deterministic query-result cache in front of the vector store.
package retriever

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
	"github.com/custodia-labs/legalrag-core/internal/metrics"
)

// Config tunes cache behavior. CacheEnabled lets deployments disable the
// KVStore round trip entirely without changing call sites.
type Config struct {
	CacheEnabled         bool
	CacheQueryResultsTTL time.Duration
}

// DefaultConfig matches spec §6 defaults.
func DefaultConfig() Config {
	return Config{CacheEnabled: true, CacheQueryResultsTTL: time.Hour}
}

// Retriever implements the retrieve-with-cache algorithm in §4.2 of the
// expanded retrieval contract, reusing the search service's pattern of
// holding its driven ports directly rather than a generic registry.
type Retriever struct {
	cfg         Config
	embedder    driven.Embedder
	vectorStore driven.VectorStore
	cache       driven.KVStore
}

// New wires a Retriever from its driven ports. cache may be nil, which
// behaves as if cfg.CacheEnabled were false.
func New(cfg Config, embedder driven.Embedder, vectorStore driven.VectorStore, cache driven.KVStore) *Retriever {
	return &Retriever{cfg: cfg, embedder: embedder, vectorStore: vectorStore, cache: cache}
}

// CacheKey computes the deterministic fingerprint for (docID, query, topK,
// matchThreshold), matching the "query:" + docId + ":" + shortHash16(query)
// + ":" + topK + ":" + matchThreshold formula. The query is lowercased and
// its whitespace runs collapsed before hashing, so queries differing only
// in case or spacing share a key.
func CacheKey(docID, query string, topK int, matchThreshold float64) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("query:%s:%s:%d:%s", docID, shortHash16(normalized), topK, formatThreshold(matchThreshold))
}

// InvalidationPattern returns the KVStore.Keys pattern that must be swept
// when a document's content changes.
func InvalidationPattern(docHash string) string {
	return "doc:" + docHash + "*"
}

func shortHash16(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

func formatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'f', 4, 64)
}

// Retrieve runs the full cache-then-embed-then-match-then-enrich pipeline.
// Cache errors degrade to a miss; VectorStore errors surface to the caller.
func (r *Retriever) Retrieve(ctx context.Context, query, docID string, topK int, matchThreshold float64) ([]domain.RetrievalResult, error) {
	key := CacheKey(docID, query, topK, matchThreshold)

	if r.cfg.CacheEnabled && r.cache != nil {
		if results, ok := r.readCache(ctx, key); ok {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return results, nil
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
	}

	queryVector, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := r.vectorStore.Match(ctx, queryVector, docID, matchThreshold, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	chunkIDs := make([]string, len(matches))
	for i, m := range matches {
		chunkIDs[i] = m.ChunkID
	}
	contexts, err := r.vectorStore.BatchContext(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, len(matches))
	for i, m := range matches {
		results[i] = domain.RetrievalResult{
			ChunkID:    m.ChunkID,
			SectionID:  m.SectionID,
			Content:    m.Content,
			Similarity: m.Similarity,
		}
		if cc, ok := contexts[m.ChunkID]; ok {
			results[i].ParentContent = cc.Parent
			results[i].SiblingContents = cc.Siblings
		}
	}

	if r.cfg.CacheEnabled && r.cache != nil && len(results) > 0 {
		r.writeCache(ctx, key, results)
	}

	return results, nil
}

func (r *Retriever) readCache(ctx context.Context, key string) ([]domain.RetrievalResult, bool) {
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var entry domain.QueryCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	return entry.Results, true
}

func (r *Retriever) writeCache(ctx context.Context, key string, results []domain.RetrievalResult) {
	raw, err := json.Marshal(domain.QueryCacheEntry{Results: results})
	if err != nil {
		return
	}
	_ = r.cache.SetEx(ctx, key, r.cfg.CacheQueryResultsTTL, raw)
}
