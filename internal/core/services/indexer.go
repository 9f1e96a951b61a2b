// Package services wires the driven ports and domain algorithms
// (parser, chunker, retriever, pii, verifier) into the driving ports the
// HTTP boundary calls.
package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/legalrag-core/internal/adapters/driven/postgres"
	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driving"
	"github.com/custodia-labs/legalrag-core/internal/normalisers"
	"github.com/custodia-labs/legalrag-core/internal/parser"
)

// IndexerConfig bounds upload size and embedding batching for Indexer.
type IndexerConfig struct {
	MaxFileBytes      int64
	EmbedBatchSize    int
	OCRMimeTypes      map[string]bool
	EnableHandwriting bool
}

// DefaultIndexerConfig caps uploads at 20 MiB, embeds chunks in batches of
// 64, and treats PDFs as OCR input.
func DefaultIndexerConfig() IndexerConfig {
	return IndexerConfig{
		MaxFileBytes:   20 << 20,
		EmbedBatchSize: 64,
		OCRMimeTypes:   map[string]bool{"application/pdf": true},
	}
}

// Indexer implements driving.IndexerService: normalize (or OCR) -> parse ->
// chunk -> embed -> upsert -> record. It writes the documents table
// directly through *postgres.DB rather than through a separate
// DocumentStore port, since document metadata is a thin, single-table
// concern with no independent lifecycle of its own.
type Indexer struct {
	cfg         IndexerConfig
	db          *postgres.DB
	normalisers driven.NormaliserRegistry
	ocr         driven.OCRClient
	parser      *parser.Parser
	chunker     *parser.Chunker
	embedder    driven.Embedder
	vectors     driven.VectorStore
	logger      *slog.Logger
}

var _ driving.IndexerService = (*Indexer)(nil)

// NewIndexer wires an Indexer from its driven dependencies. ocr may be nil,
// in which case OCR-eligible MIME types fall through to the normaliser
// registry's best-effort plain-text handling.
func NewIndexer(cfg IndexerConfig, db *postgres.DB, norm driven.NormaliserRegistry, ocr driven.OCRClient,
	embedder driven.Embedder, vectors driven.VectorStore, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if norm == nil {
		norm = normalisers.DefaultRegistry()
	}
	return &Indexer{
		cfg:         cfg,
		db:          db,
		normalisers: norm,
		ocr:         ocr,
		parser:      parser.New(),
		chunker:     parser.NewChunker(parser.DefaultChunkerConfig()),
		embedder:    embedder,
		vectors:     vectors,
		logger:      logger,
	}
}

// Index runs the full single-document ingestion path.
func (idx *Indexer) Index(ctx context.Context, req driving.IndexRequest) (driving.IndexResult, error) {
	if len(req.Content) == 0 {
		return driving.IndexResult{}, fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}
	if idx.cfg.MaxFileBytes > 0 && int64(len(req.Content)) > idx.cfg.MaxFileBytes {
		return driving.IndexResult{}, domain.ErrFileTooLarge
	}

	docHash := hashBytes(req.Content)
	exists, err := idx.hashExists(ctx, req.UserID, docHash)
	if err != nil {
		return driving.IndexResult{}, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	if exists {
		return driving.IndexResult{}, domain.ErrAlreadyExists
	}

	text, err := idx.extractText(ctx, req)
	if err != nil {
		return driving.IndexResult{}, err
	}

	docID := uuid.NewString()
	sections := idx.parser.Parse(text)
	chunks := idx.chunker.Chunk(sections, docID)
	if len(chunks) == 0 {
		return driving.IndexResult{}, fmt.Errorf("%w: no extractable content", domain.ErrInvalidInput)
	}

	if err := idx.embedAndUpsert(ctx, chunks); err != nil {
		return driving.IndexResult{}, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}

	doc := domain.Document{
		DocID:     docID,
		UserID:    req.UserID,
		Filename:  req.Filename,
		DocHash:   docHash,
		SizeBytes: int64(len(req.Content)),
		Status:    domain.DocumentStatusActive,
		CreatedAt: time.Now(),
	}
	if err := idx.insertDocument(ctx, doc); err != nil {
		if err == domain.ErrAlreadyExists {
			return driving.IndexResult{}, err
		}
		return driving.IndexResult{}, fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}

	idx.logger.Info("document indexed", "docId", docID, "userId", req.UserID, "chunks", len(chunks))
	return driving.IndexResult{Document: doc, ChunksCreated: len(chunks)}, nil
}

func (idx *Indexer) extractText(ctx context.Context, req driving.IndexRequest) (string, error) {
	if idx.cfg.OCRMimeTypes[req.MimeType] && idx.ocr != nil && idx.ocr.IsAvailable(ctx) {
		result, err := idx.ocr.Process(ctx, req.Content, idx.cfg.EnableHandwriting, uuid.NewString())
		if err != nil {
			return "", fmt.Errorf("%w: ocr: %v", domain.ErrExternalUnavailable, err)
		}
		return result.Text, nil
	}

	content := string(req.Content)
	if n := idx.normalisers.Get(req.MimeType); n != nil {
		content = n.Normalise(content, req.MimeType)
	}
	return content, nil
}

func (idx *Indexer) embedAndUpsert(ctx context.Context, chunks []domain.Chunk) error {
	batchSize := idx.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}

		items := make([]driven.UpsertItem, len(batch))
		for i, c := range batch {
			items[i] = driven.UpsertItem{
				NumericID: domain.ChunkNumericID(c.ChunkID),
				Vector:    vectors[i],
				Chunk:     c,
			}
		}
		if err := idx.vectors.Upsert(ctx, items); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (idx *Indexer) hashExists(ctx context.Context, userID, docHash string) (bool, error) {
	var exists bool
	err := idx.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE user_id = $1 AND doc_hash = $2)`,
		userID, docHash,
	).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	return exists, nil
}

func (idx *Indexer) insertDocument(ctx context.Context, doc domain.Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	res, err := idx.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, user_id, filename, doc_hash, size_bytes, metadata, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, doc_hash) DO NOTHING`,
		doc.DocID, doc.UserID, doc.Filename, doc.DocHash, doc.SizeBytes, meta, string(doc.Status), doc.CreatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func hashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
