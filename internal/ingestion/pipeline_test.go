package ingestion

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
	"github.com/custodia-labs/legalrag-core/internal/normalisers"
)

type fakeCrawler struct {
	name    string
	records []driven.Record
	cursor  time.Time
	err     error
}

func (c *fakeCrawler) Name() string { return c.name }
func (c *fakeCrawler) Fetch(ctx context.Context, since time.Time) ([]driven.Record, time.Time, error) {
	return c.records, c.cursor, c.err
}

type fakeEmbedder struct{ dim int }

func (e *fakeEmbedder) Dim() int { return e.dim }
func (e *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	v, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}
func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		for j := range v {
			v[j] = float32(len(t)+j) * 0.01
		}
		out[i] = v
	}
	return out, nil
}

type fakeVectorStore struct {
	upserted []driven.UpsertItem
}

func (v *fakeVectorStore) CreateCollection(ctx context.Context, dim int, recreate bool) error { return nil }
func (v *fakeVectorStore) Upsert(ctx context.Context, items []driven.UpsertItem) error {
	v.upserted = append(v.upserted, items...)
	return nil
}
func (v *fakeVectorStore) Match(ctx context.Context, q []float32, docID string, minSim float64, k int) ([]domain.Match, error) {
	return nil, nil
}
func (v *fakeVectorStore) BatchContext(ctx context.Context, chunkIDs []string) (map[string]domain.ChunkContext, error) {
	return nil, nil
}
func (v *fakeVectorStore) DeleteByDocument(ctx context.Context, docID string) error { return nil }

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineRunEndToEnd(t *testing.T) {
	store, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	reg := NewRegistry()
	crawler := &fakeCrawler{
		name: "eur-lex",
		records: []driven.Record{
			{ExternalID: "doc-1", Filename: "doc1.txt", MimeType: "text/plain",
				Content: []byte("§ 1 Grundsatz. Dies ist ein Testsatz fuer die Chunk-Erzeugung, lang genug."), CreatedDate: time.Now()},
		},
		cursor: time.Now(),
	}
	reg.Register(crawler)

	vectors := &fakeVectorStore{}
	pipeline := New(DefaultPipelineConfig(), store, reg, normalisers.DefaultRegistry(), &fakeEmbedder{dim: 8}, vectors, silentLogger())

	state, err := pipeline.Run(context.Background(), "run-1", "eur-lex")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != domain.IngestionCompleted {
		t.Errorf("expected completed status, got %s", state.Status)
	}
	if state.DocumentsFetched != 1 {
		t.Errorf("expected 1 document fetched, got %d", state.DocumentsFetched)
	}
	if state.ChunksCreated == 0 {
		t.Error("expected at least one chunk created")
	}
	if len(vectors.upserted) != state.ChunksCreated {
		t.Errorf("expected %d upserted items, got %d", state.ChunksCreated, len(vectors.upserted))
	}
}

func TestPipelineRunUnknownCrawlerFails(t *testing.T) {
	store, _ := NewFileCheckpointStore(t.TempDir())
	reg := NewRegistry()
	pipeline := New(DefaultPipelineConfig(), store, reg, normalisers.DefaultRegistry(), &fakeEmbedder{dim: 4}, &fakeVectorStore{}, silentLogger())

	_, err := pipeline.Run(context.Background(), "run-x", "nope")
	if err == nil {
		t.Fatal("expected error for unknown crawler")
	}

	state, ok, loadErr := store.LoadState("run-x")
	if loadErr != nil || !ok {
		t.Fatalf("expected failure state to be persisted: ok=%v err=%v", ok, loadErr)
	}
	if state.Status != domain.IngestionFailed {
		t.Errorf("expected failed status, got %s", state.Status)
	}
}

func TestPipelineRunRejectsNonResumableRun(t *testing.T) {
	store, _ := NewFileCheckpointStore(t.TempDir())
	_ = store.SaveState("run-done", domain.IngestionState{RunID: "run-done", Status: domain.IngestionCompleted})

	reg := NewRegistry()
	reg.Register(&fakeCrawler{name: "eur-lex"})
	pipeline := New(DefaultPipelineConfig(), store, reg, normalisers.DefaultRegistry(), &fakeEmbedder{dim: 4}, &fakeVectorStore{}, silentLogger())

	if _, err := pipeline.Run(context.Background(), "run-done", "eur-lex"); err == nil {
		t.Error("expected error resuming a completed run")
	}
}

func TestPipelineSkipsFetchStageWhenAlreadyComplete(t *testing.T) {
	store, _ := NewFileCheckpointStore(t.TempDir())
	crawler := &fakeCrawler{name: "eur-lex"}
	reg := NewRegistry()
	reg.Register(crawler)

	_ = store.SaveState("run-2", domain.IngestionState{RunID: "run-2", Status: domain.IngestionRunning, DocumentsFetched: 1})
	_ = store.AppendDocuments("run-2", [][]byte{[]byte(`{"externalId":"doc-1","content":"§ 1 Bereits vorhanden."}`)})

	vectors := &fakeVectorStore{}
	pipeline := New(DefaultPipelineConfig(), store, reg, normalisers.DefaultRegistry(), &fakeEmbedder{dim: 4}, vectors, silentLogger())

	state, err := pipeline.Run(context.Background(), "run-2", "eur-lex")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.DocumentsFetched != 1 {
		t.Errorf("expected fetch stage to be skipped, preserving count 1, got %d", state.DocumentsFetched)
	}
}

func sampleNormalizedRecords() [][]byte {
	return [][]byte{
		[]byte(`{"externalId":"doc-1","content":"§ 1 Erster Testsatz fuer die Chunk-Erzeugung, lang genug um einen Chunk zu bilden."}`),
		[]byte(`{"externalId":"doc-2","content":"§ 2 Zweiter Testsatz fuer die Chunk-Erzeugung, ebenfalls lang genug."}`),
	}
}

func TestChunkStageBatchesAndResumesWithoutDuplication(t *testing.T) {
	records := sampleNormalizedRecords()

	fullStore, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := fullStore.AppendNormalized("run-full", records); err != nil {
		t.Fatalf("seed normalized: %v", err)
	}

	cfg := DefaultPipelineConfig()
	cfg.ChunkBatchSize = 1
	pipeline := New(cfg, fullStore, NewRegistry(), normalisers.DefaultRegistry(), &fakeEmbedder{dim: 4}, &fakeVectorStore{}, silentLogger())

	fullState := domain.IngestionState{RunID: "run-full", DocumentsNormalized: len(records)}
	if err := pipeline.chunkStage(context.Background(), "run-full", &fullState, "eur-lex"); err != nil {
		t.Fatalf("chunk stage: %v", err)
	}
	if fullState.DocumentsChunked != len(records) {
		t.Errorf("expected DocumentsChunked=%d, got %d", len(records), fullState.DocumentsChunked)
	}
	fullChunkCount, err := fullStore.CountLines("run-full", "chunks.jsonl")
	if err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if fullChunkCount == 0 {
		t.Fatal("expected chunks from a full run")
	}

	// Isolate doc-1's chunk count so the resume scenario below can seed
	// exactly what a crash after the first batch would have left behind.
	doc1Store, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := doc1Store.AppendNormalized("run-doc1", records[:1]); err != nil {
		t.Fatalf("seed normalized: %v", err)
	}
	doc1Pipeline := New(cfg, doc1Store, NewRegistry(), normalisers.DefaultRegistry(), &fakeEmbedder{dim: 4}, &fakeVectorStore{}, silentLogger())
	doc1State := domain.IngestionState{RunID: "run-doc1", DocumentsNormalized: 1}
	if err := doc1Pipeline.chunkStage(context.Background(), "run-doc1", &doc1State, "eur-lex"); err != nil {
		t.Fatalf("chunk stage doc1: %v", err)
	}
	doc1Chunks, err := doc1Store.ReadChunks("run-doc1")
	if err != nil {
		t.Fatalf("read doc1 chunks: %v", err)
	}

	resumeStore, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := resumeStore.AppendNormalized("run-resume", records); err != nil {
		t.Fatalf("seed normalized: %v", err)
	}
	if err := resumeStore.AppendChunks("run-resume", doc1Chunks); err != nil {
		t.Fatalf("seed partial chunks: %v", err)
	}
	resumePipeline := New(cfg, resumeStore, NewRegistry(), normalisers.DefaultRegistry(), &fakeEmbedder{dim: 4}, &fakeVectorStore{}, silentLogger())
	resumeState := domain.IngestionState{
		RunID:               "run-resume",
		DocumentsNormalized: len(records),
		DocumentsChunked:    1,
		ChunksCreated:       len(doc1Chunks),
	}
	if err := resumePipeline.chunkStage(context.Background(), "run-resume", &resumeState, "eur-lex"); err != nil {
		t.Fatalf("chunk stage resume: %v", err)
	}
	if resumeState.DocumentsChunked != len(records) {
		t.Errorf("expected resumed DocumentsChunked=%d, got %d", len(records), resumeState.DocumentsChunked)
	}

	resumeChunkCount, err := resumeStore.CountLines("run-resume", "chunks.jsonl")
	if err != nil {
		t.Fatalf("count resumed chunks: %v", err)
	}
	if resumeChunkCount != fullChunkCount {
		t.Errorf("expected resumed run to match a non-interrupted run's chunk count exactly (no duplication): got %d, want %d", resumeChunkCount, fullChunkCount)
	}
}

func TestChunkStagePropagatesRunCancellation(t *testing.T) {
	store, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.AppendNormalized("run-cancel", sampleNormalizedRecords()[:1]); err != nil {
		t.Fatalf("seed normalized: %v", err)
	}

	pipeline := New(DefaultPipelineConfig(), store, NewRegistry(), normalisers.DefaultRegistry(), &fakeEmbedder{dim: 4}, &fakeVectorStore{}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := domain.IngestionState{RunID: "run-cancel", DocumentsNormalized: 1}
	if err := pipeline.chunkStage(ctx, "run-cancel", &state, "eur-lex"); err == nil {
		t.Fatal("expected a canceled run context to propagate as an error rather than being treated as a per-document skip")
	}
}

func TestChunkDocumentTimesOutOnExpiredDeadline(t *testing.T) {
	store, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	cfg := DefaultPipelineConfig()
	cfg.DocTimeout = -1 * time.Second
	pipeline := New(cfg, store, NewRegistry(), normalisers.DefaultRegistry(), &fakeEmbedder{dim: 4}, &fakeVectorStore{}, silentLogger())

	rec := pipelineRecord{ExternalID: "doc-slow", Content: "§ 1 Ein Satz."}
	if _, err := pipeline.chunkDocument(context.Background(), rec, "eur-lex"); err == nil {
		t.Fatal("expected an already-expired document deadline to return an error")
	}
}

func TestChunkBatchSkipsRemainderOnBatchTimeout(t *testing.T) {
	store, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	cfg := DefaultPipelineConfig()
	cfg.BatchTimeout = -1 * time.Second
	pipeline := New(cfg, store, NewRegistry(), normalisers.DefaultRegistry(), &fakeEmbedder{dim: 4}, &fakeVectorStore{}, silentLogger())

	batch := []pipelineRecord{
		{ExternalID: "doc-1", Content: "§ 1 Inhalt eins."},
		{ExternalID: "doc-2", Content: "§ 2 Inhalt zwei."},
	}
	created, err := pipeline.chunkBatch(context.Background(), "run-batch-timeout", batch, "eur-lex")
	if err != nil {
		t.Fatalf("chunk batch: %v", err)
	}
	if created != 0 {
		t.Errorf("expected no chunks once the batch deadline has already passed, got %d", created)
	}

	n, err := store.CountLines("run-batch-timeout", "skipped_documents.json")
	if err != nil {
		t.Fatalf("count skipped: %v", err)
	}
	if n != len(batch) {
		t.Errorf("expected both documents recorded as skipped, got %d", n)
	}
}
