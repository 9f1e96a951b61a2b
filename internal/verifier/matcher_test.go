package verifier

import (
	"context"
	"strings"
	"testing"
)

// fakeEmbedder returns a bag-of-words style vector so cosine similarity
// reflects lexical overlap without needing a real model.
type fakeEmbedder struct {
	dim   int
	calls int
}

var vocab = []string{"termination", "notice", "contract", "employee", "unrelated", "weather"}

func (f *fakeEmbedder) Dim() int { return len(vocab) }

func (f *fakeEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	f.calls++
	lower := strings.ToLower(text)
	vec := make([]float32, len(vocab))
	for i, w := range vocab {
		if strings.Contains(lower, w) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestMatchScoresOrderedLikeSources(t *testing.T) {
	m := NewSemanticMatcher(&fakeEmbedder{}, 16)
	scores, err := m.Match(context.Background(), "The contract termination notice was sent.",
		[]string{"This clause governs contract termination notice.", "The weather was nice that day."})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0] <= scores[1] {
		t.Errorf("expected first source to score higher: %v", scores)
	}
}

func TestMatchCachesEmbeddings(t *testing.T) {
	fe := &fakeEmbedder{}
	m := NewSemanticMatcher(fe, 16)
	ctx := context.Background()

	if _, err := m.Match(ctx, "contract notice", []string{"employee contract"}); err != nil {
		t.Fatalf("match: %v", err)
	}
	callsAfterFirst := fe.calls

	if _, err := m.Match(ctx, "contract notice", []string{"employee contract"}); err != nil {
		t.Fatalf("match: %v", err)
	}
	if fe.calls != callsAfterFirst {
		t.Errorf("expected cache hit to avoid new embed calls, calls went from %d to %d", callsAfterFirst, fe.calls)
	}
}

func TestEmbeddingLRUEviction(t *testing.T) {
	cache := newEmbeddingLRU(2)
	cache.put("a", []float32{1})
	cache.put("b", []float32{2})
	cache.put("c", []float32{3})

	if _, ok := cache.get("a"); ok {
		t.Error("expected least-recently-used entry a to be evicted")
	}
	if _, ok := cache.get("b"); !ok {
		t.Error("expected b to remain cached")
	}
	if _, ok := cache.get("c"); !ok {
		t.Error("expected c to remain cached")
	}
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	if got := cosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors should score 0, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("identical vectors should score ~1, got %f", got)
	}
}
