package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
	"github.com/custodia-labs/legalrag-core/internal/metrics"
	"github.com/custodia-labs/legalrag-core/internal/normalisers"
	"github.com/custodia-labs/legalrag-core/internal/parser"
)

// PipelineConfig bounds batch sizes and per-unit timeouts for the chunk and
// embed+upsert stages. Concurrency is carried in the config but not read by
// the pipeline: batches are processed one at a time.
type PipelineConfig struct {
	EmbedBatchSize int
	Concurrency    int
	ChunkBatchSize int
	BatchTimeout   time.Duration
	DocTimeout     time.Duration
}

// DefaultPipelineConfig matches spec §6 ingestion defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		EmbedBatchSize: 1000,
		Concurrency:    4,
		ChunkBatchSize: 100,
		BatchTimeout:   1800 * time.Second,
		DocTimeout:     300 * time.Second,
	}
}

// Pipeline runs the fetch -> normalize -> parse+chunk -> embed+upsert stage
// sequence, checkpointing after every stage so a crash can resume without
// redoing completed work. Stage sequencing and per-item error aggregation
// follow the source-sync loop's per-item continue-on-error shape; the
// embed+upsert stage walks fixed-size batches sequentially, without a
// goroutine fan-out.
type Pipeline struct {
	cfg         PipelineConfig
	checkpoints driven.CheckpointStore
	factory     driven.CrawlerFactory
	normalisers driven.NormaliserRegistry
	parser      *parser.Parser
	chunker     *parser.Chunker
	embedder    driven.Embedder
	vectors     driven.VectorStore
	logger      *slog.Logger
}

// New builds a Pipeline from its driven dependencies.
func New(cfg PipelineConfig, checkpoints driven.CheckpointStore, factory driven.CrawlerFactory,
	norm driven.NormaliserRegistry, embedder driven.Embedder, vectors driven.VectorStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if norm == nil {
		norm = normalisers.DefaultRegistry()
	}
	return &Pipeline{
		cfg:         cfg,
		checkpoints: checkpoints,
		factory:     factory,
		normalisers: norm,
		parser:      parser.New(),
		chunker:     parser.NewChunker(parser.DefaultChunkerConfig()),
		embedder:    embedder,
		vectors:     vectors,
		logger:      logger,
	}
}

// pipelineRecord is the JSONL shape persisted at each stage.
type pipelineRecord struct {
	ExternalID  string    `json:"externalId"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mimeType"`
	Content     string    `json:"content"`
	CreatedDate time.Time `json:"createdDate"`
}

func docIDFor(crawlerName, externalID string) string {
	sum := sha256.Sum256([]byte(crawlerName + ":" + externalID))
	return hex.EncodeToString(sum[:])[:32]
}

// Run executes a full ingestion run for the named crawler, resuming from
// runID's checkpoint if one exists and is resumable.
func (p *Pipeline) Run(ctx context.Context, runID, crawlerName string) (domain.IngestionState, error) {
	state, ok, err := p.checkpoints.LoadState(runID)
	if err != nil {
		return domain.IngestionState{}, err
	}
	if !ok {
		state = domain.IngestionState{
			RunID:     runID,
			Status:    domain.IngestionRunning,
			StartTime: time.Now(),
		}
	} else if !state.CanResume() {
		return state, fmt.Errorf("ingestion: run %s is not resumable (status=%s)", runID, state.Status)
	}

	crawler, err := p.factory.Create(crawlerName)
	if err != nil {
		return state, p.fail(runID, state, err)
	}

	if err := p.fetchStage(ctx, runID, &state, crawler); err != nil {
		return state, p.fail(runID, state, err)
	}
	if err := p.normalizeStage(ctx, runID, &state); err != nil {
		return state, p.fail(runID, state, err)
	}
	if err := p.chunkStage(ctx, runID, &state, crawlerName); err != nil {
		return state, p.fail(runID, state, err)
	}
	if err := p.embedUpsertStage(ctx, runID, &state); err != nil {
		return state, p.fail(runID, state, err)
	}

	state.Status = domain.IngestionCompleted
	if err := p.checkpoints.SaveState(runID, state); err != nil {
		return state, err
	}

	tracker, err := p.checkpoints.LoadUpdateTracker()
	if err == nil {
		if tracker.LastUpdate == nil {
			tracker.LastUpdate = map[string]time.Time{}
		}
		tracker.LastUpdate[crawlerName] = time.Now()
		_ = p.checkpoints.SaveUpdateTracker(tracker)
	}

	p.logger.Info("ingestion run completed", "runId", runID, "documents", state.DocumentsFetched, "chunks", state.ChunksCreated)
	return state, nil
}

func (p *Pipeline) fail(runID string, state domain.IngestionState, cause error) error {
	state.Status = domain.IngestionFailed
	state.ErrorCount++
	state.LastError = cause.Error()
	if err := p.checkpoints.SaveState(runID, state); err != nil {
		p.logger.Error("failed to persist failure state", "runId", runID, "error", err)
	}
	return cause
}

func (p *Pipeline) fetchStage(ctx context.Context, runID string, state *domain.IngestionState, crawler driven.Crawler) error {
	n, err := p.checkpoints.CountLines(runID, "documents.jsonl")
	if err != nil {
		return err
	}
	if n > 0 && state.DocumentsFetched > 0 {
		p.logger.Info("fetch stage already complete, skipping", "runId", runID)
		return nil
	}

	tracker, err := p.checkpoints.LoadUpdateTracker()
	if err != nil {
		return err
	}

	records, cursor, err := crawler.Fetch(ctx, tracker.CursorFor(crawler.Name()))
	if err != nil {
		return fmt.Errorf("fetch stage: %w", err)
	}

	buffered := make([][]byte, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(pipelineRecord{
			ExternalID: rec.ExternalID, Filename: rec.Filename,
			MimeType: rec.MimeType, Content: string(rec.Content), CreatedDate: rec.CreatedDate,
		})
		if err != nil {
			return err
		}
		buffered = append(buffered, data)
	}
	if err := p.checkpoints.AppendDocuments(runID, buffered); err != nil {
		return err
	}

	state.DocumentsFetched = len(records)
	metrics.IngestionDocumentsProcessed.WithLabelValues(crawler.Name(), "fetched").Add(float64(len(records)))
	if !cursor.IsZero() {
		tracker.LastUpdate[crawler.Name()] = cursor
	}
	return p.checkpoints.SaveState(runID, *state)
}

func (p *Pipeline) normalizeStage(ctx context.Context, runID string, state *domain.IngestionState) error {
	if n, err := p.checkpoints.CountLines(runID, "normalized.jsonl"); err == nil && n >= state.DocumentsFetched && state.DocumentsFetched > 0 {
		p.logger.Info("normalize stage already complete, skipping", "runId", runID)
		return nil
	}

	lines, err := p.checkpoints.ReadDocuments(runID)
	if err != nil {
		return err
	}
	raw, err := decodeRecords(lines, "documents.jsonl")
	if err != nil {
		return err
	}

	buffered := make([][]byte, 0, len(raw))
	for _, rec := range raw {
		normaliser := p.normalisers.Get(rec.MimeType)
		content := rec.Content
		if normaliser != nil {
			content = normaliser.Normalise(content, rec.MimeType)
		}
		rec.Content = content
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		buffered = append(buffered, data)
	}

	if err := p.checkpoints.AppendNormalized(runID, buffered); err != nil {
		return err
	}
	state.DocumentsNormalized = len(buffered)
	return p.checkpoints.SaveState(runID, *state)
}

// chunkStage chunks normalized documents in ChunkBatchSize batches,
// checkpointing chunks_created after every batch so a crash mid-stage
// resumes at the next unprocessed batch instead of reprocessing documents
// already appended to chunks.jsonl. Each batch runs under BatchTimeout;
// each document within a batch additionally runs under DocTimeout. A
// document that times out is recorded to skipped_documents.json and the
// batch continues; a batch that times out skips its remaining documents
// the same way and the next batch begins.
func (p *Pipeline) chunkStage(ctx context.Context, runID string, state *domain.IngestionState, crawlerName string) error {
	if state.DocumentsNormalized > 0 && state.DocumentsChunked >= state.DocumentsNormalized {
		p.logger.Info("chunk stage already complete, skipping", "runId", runID)
		return nil
	}

	lines, err := p.checkpoints.ReadNormalized(runID)
	if err != nil {
		return err
	}
	normalized, err := decodeRecords(lines, "normalized.jsonl")
	if err != nil {
		return err
	}

	batchSize := p.cfg.ChunkBatchSize
	if batchSize <= 0 {
		batchSize = len(normalized)
	}

	for start := state.DocumentsChunked; start < len(normalized); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + batchSize
		if end > len(normalized) {
			end = len(normalized)
		}

		created, err := p.chunkBatch(ctx, runID, normalized[start:end], crawlerName)
		if err != nil {
			return err
		}

		state.ChunksCreated += created
		state.DocumentsChunked = end
		if err := p.checkpoints.SaveState(runID, *state); err != nil {
			return err
		}
	}

	return nil
}

// chunkBatch chunks one batch of normalized records under a shared
// BatchTimeout, returning the number of chunks produced. Documents that
// individually time out, or that are never reached because the batch
// deadline has already passed, are recorded as skipped rather than
// retried inline.
func (p *Pipeline) chunkBatch(ctx context.Context, runID string, batch []pipelineRecord, crawlerName string) (int, error) {
	batchCtx, cancel := context.WithTimeout(ctx, p.cfg.BatchTimeout)
	defer cancel()

	total := 0
	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		chunks, err := p.chunkDocument(batchCtx, rec, crawlerName)
		if err != nil {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			reason := "document timeout"
			if batchCtx.Err() != nil {
				reason = "batch timeout"
			}
			if skipErr := p.checkpoints.AppendSkippedDocument(runID, domain.SkippedDocument{DocID: rec.ExternalID, Reason: reason}); skipErr != nil {
				return total, skipErr
			}
			continue
		}

		buffered := make([][]byte, 0, len(chunks))
		for _, c := range chunks {
			data, err := json.Marshal(c)
			if err != nil {
				return total, err
			}
			buffered = append(buffered, data)
		}
		if err := p.checkpoints.AppendChunks(runID, buffered); err != nil {
			return total, err
		}
		total += len(chunks)
	}

	return total, nil
}

// chunkDocument parses and chunks one document under DocTimeout. Parsing
// and chunking are synchronous CPU work, so the timeout is enforced by
// racing the work against the context's done channel; a timed-out
// goroutine finishes in the background and its result is discarded.
func (p *Pipeline) chunkDocument(ctx context.Context, rec pipelineRecord, crawlerName string) ([]domain.Chunk, error) {
	docCtx, cancel := context.WithTimeout(ctx, p.cfg.DocTimeout)
	defer cancel()
	if err := docCtx.Err(); err != nil {
		return nil, err
	}

	done := make(chan []domain.Chunk, 1)
	go func() {
		docID := docIDFor(crawlerName, rec.ExternalID)
		sections := p.parser.Parse(rec.Content)
		done <- p.chunker.Chunk(sections, docID)
	}()

	select {
	case chunks := <-done:
		return chunks, nil
	case <-docCtx.Done():
		return nil, docCtx.Err()
	}
}

func (p *Pipeline) embedUpsertStage(ctx context.Context, runID string, state *domain.IngestionState) error {
	raw, err := p.checkpoints.ReadChunks(runID)
	if err != nil {
		return err
	}

	var chunks []domain.Chunk
	for _, line := range raw {
		var c domain.Chunk
		if err := json.Unmarshal(line, &c); err != nil {
			return fmt.Errorf("embed stage: decode chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	batchSize := p.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	// Resume after the vectors a previous attempt of this run already upserted.
	uploaded := state.VectorsUploaded
	if uploaded > len(chunks) {
		uploaded = 0
	}
	for start := uploaded; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed stage: batch %d-%d: %w", start, end, err)
		}

		items := make([]driven.UpsertItem, len(batch))
		for i, c := range batch {
			items[i] = driven.UpsertItem{
				NumericID: domain.ChunkNumericID(c.ChunkID),
				Vector:    vectors[i],
				Chunk:     c,
			}
		}
		if err := p.vectors.Upsert(ctx, items); err != nil {
			return fmt.Errorf("embed stage: upsert batch %d-%d: %w", start, end, err)
		}

		uploaded += len(batch)
		state.VectorsUploaded = uploaded
		if err := p.checkpoints.SaveState(runID, *state); err != nil {
			return err
		}
	}

	return nil
}

func decodeRecords(lines [][]byte, artifact string) ([]pipelineRecord, error) {
	records := make([]pipelineRecord, 0, len(lines))
	for _, line := range lines {
		var rec pipelineRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("ingestion: decode %s: %w", artifact, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
