package verifier

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"

	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
)

// embeddingLRU is a capacity-bounded, concurrency-safe cache keyed by a
// 16-character content hash, hand-rolled over container/list rather than
// pulled from a new dependency — see DESIGN.md for why.
type embeddingLRU struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

type lruEntry struct {
	key   string
	value []float32
}

func newEmbeddingLRU(capacity int) *embeddingLRU {
	return &embeddingLRU{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *embeddingLRU) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *embeddingLRU) put(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&lruEntry{key: key, value: value})
	c.items[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).key)
		}
	}
}

func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// SemanticMatcher embeds a sentence and each source snippet and returns
// cosine similarities. Source embeddings are cached across a batch and
// across verifier calls by a 16-char content hash.
type SemanticMatcher struct {
	embedder driven.Embedder
	cache    *embeddingLRU
}

// NewSemanticMatcher creates a matcher backed by embedder, with an LRU
// cache of the given capacity.
func NewSemanticMatcher(embedder driven.Embedder, cacheCapacity int) *SemanticMatcher {
	return &SemanticMatcher{embedder: embedder, cache: newEmbeddingLRU(cacheCapacity)}
}

func (m *SemanticMatcher) embed(ctx context.Context, text string) ([]float32, error) {
	key := hashKey(text)
	if v, ok := m.cache.get(key); ok {
		return v, nil
	}
	v, err := m.embedder.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.put(key, v)
	return v, nil
}

// Match embeds sentence and every source, returning cosine similarity per
// source in input order. One query embed plus K source embeds per call,
// with source embeds cached across the batch (and across calls).
func (m *SemanticMatcher) Match(ctx context.Context, sentence string, sources []string) ([]float64, error) {
	sentenceVec, err := m.embed(ctx, sentence)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(sources))
	for i, src := range sources {
		srcVec, err := m.embed(ctx, src)
		if err != nil {
			return nil, err
		}
		scores[i] = cosineSimilarity(sentenceVec, srcVec)
	}
	return scores, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
