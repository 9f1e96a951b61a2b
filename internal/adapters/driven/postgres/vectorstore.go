package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
	"github.com/lib/pq"
)

var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore implements driven.VectorStore over a pgvector-enabled
// PostgreSQL table. One VectorStore serves one embedding dimension for the
// lifetime of the process; the dimension is fixed at construction because a
// deployment runs a single embedding model at a time.
type VectorStore struct {
	db    *DB
	dim   int
	table string
}

// NewVectorStore wraps an existing connection pool, scoped to dim.
func NewVectorStore(db *DB, dim int) *VectorStore {
	return &VectorStore{db: db, dim: dim, table: fmt.Sprintf("chunks_%d", dim)}
}

// CreateCollection provisions the chunk table, always with cosine distance
// (vector_cosine_ops). Recreate drops and recreates the table.
func (s *VectorStore) CreateCollection(ctx context.Context, dim int, recreate bool) error {
	if dim != s.dim {
		return fmt.Errorf("postgres: vector store configured for dim %d, got %d", s.dim, dim)
	}

	if recreate {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
			return fmt.Errorf("postgres: drop collection: %w", err)
		}
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			numeric_id BIGINT PRIMARY KEY,
			chunk_id TEXT NOT NULL UNIQUE,
			doc_id TEXT NOT NULL,
			section_id TEXT NOT NULL,
			parent_id TEXT,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS %s_doc_id_idx ON %s (doc_id);
		CREATE INDEX IF NOT EXISTS %s_parent_id_idx ON %s (parent_id);
		CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops);
	`, s.table, dim, s.table, s.table, s.table, s.table, s.table, s.table)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: create collection: %w", err)
	}
	return nil
}

func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Upsert writes or replaces chunk payloads and their vectors in a single
// transaction.
func (s *VectorStore) Upsert(ctx context.Context, items []driven.UpsertItem) error {
	if len(items) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (numeric_id, chunk_id, doc_id, section_id, parent_id, content, embedding)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7::vector)
		ON CONFLICT (chunk_id) DO UPDATE SET
			content = EXCLUDED.content,
			section_id = EXCLUDED.section_id,
			parent_id = EXCLUDED.parent_id,
			embedding = EXCLUDED.embedding
	`, s.table)

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, item := range items {
			if _, err := stmt.ExecContext(ctx,
				int64(item.NumericID), item.Chunk.ChunkID, item.Chunk.DocID,
				item.Chunk.SectionID, item.Chunk.ParentID, item.Chunk.Content, vectorLiteral(item.Vector),
			); err != nil {
				return fmt.Errorf("postgres: upsert %s: %w", item.Chunk.ChunkID, err)
			}
		}
		return nil
	})
}

// Match performs a cosine-distance similarity search scoped to one
// document, ordered by similarity descending.
func (s *VectorStore) Match(ctx context.Context, queryVector []float32, docID string, minSimilarity float64, k int) ([]domain.Match, error) {
	query := fmt.Sprintf(`
		SELECT chunk_id, section_id, content, 1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE doc_id = $2 AND 1 - (embedding <=> $1::vector) >= $3
		ORDER BY similarity DESC
		LIMIT $4
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query, vectorLiteral(queryVector), docID, minSimilarity, k)
	if err != nil {
		return nil, fmt.Errorf("postgres: match: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(&m.ChunkID, &m.SectionID, &m.Content, &m.Similarity); err != nil {
			return nil, fmt.Errorf("postgres: scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// BatchContext resolves parent + up-to-MaxSiblings sibling context for a
// batch of chunk IDs in one round trip via self-joins on parent_id. One
// query regardless of len(chunkIDs) — looping per chunk here would violate
// the VectorStore contract.
func (s *VectorStore) BatchContext(ctx context.Context, chunkIDs []string) (map[string]domain.ChunkContext, error) {
	if len(chunkIDs) == 0 {
		return map[string]domain.ChunkContext{}, nil
	}

	query := fmt.Sprintf(`
		SELECT c.chunk_id, c.content, p.content AS parent_content,
		       COALESCE(array_agg(sib.content ORDER BY sib.chunk_id) FILTER (WHERE sib.content IS NOT NULL), '{}') AS siblings
		FROM %s c
		LEFT JOIN %s p ON p.chunk_id = c.parent_id AND p.doc_id = c.doc_id
		LEFT JOIN %s sib ON sib.parent_id = c.parent_id
			AND sib.doc_id = c.doc_id AND sib.chunk_id != c.chunk_id AND c.parent_id IS NOT NULL
		WHERE c.chunk_id = ANY($1)
		GROUP BY c.chunk_id, c.content, p.content
	`, s.table, s.table, s.table)

	rows, err := s.db.QueryContext(ctx, query, pq.Array(chunkIDs))
	if err != nil {
		return nil, fmt.Errorf("postgres: batch context: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.ChunkContext, len(chunkIDs))
	for rows.Next() {
		var chunkID, content string
		var parent sql.NullString
		var siblings pq.StringArray
		if err := rows.Scan(&chunkID, &content, &parent, &siblings); err != nil {
			return nil, fmt.Errorf("postgres: scan batch context: %w", err)
		}

		cc := domain.ChunkContext{Target: content}
		if parent.Valid {
			p := parent.String
			cc.Parent = &p
		}
		sibs := []string(siblings)
		if len(sibs) > domain.MaxSiblings {
			sibs = sibs[:domain.MaxSiblings]
		}
		cc.Siblings = sibs
		result[chunkID] = cc
	}
	return result, rows.Err()
}

// DeleteByDocument removes all chunks belonging to a document.
func (s *VectorStore) DeleteByDocument(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, s.table), docID); err != nil {
		return fmt.Errorf("postgres: delete by document: %w", err)
	}
	return nil
}
