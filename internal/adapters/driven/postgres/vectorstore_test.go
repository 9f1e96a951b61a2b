package postgres

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
)

var errBrokenInsert = errors.New("insert failed")

func newMockStore(t *testing.T) (*VectorStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	store := NewVectorStore(&DB{DB: db}, 3)
	return store, mock, func() { db.Close() }
}

func TestCreateCollectionRejectsMismatchedDim(t *testing.T) {
	store, _, cleanup := newMockStore(t)
	defer cleanup()

	if err := store.CreateCollection(context.Background(), 1536, false); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestCreateCollectionIssuesDDL(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS chunks_3").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.CreateCollection(context.Background(), 3, false); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateCollectionRecreateDropsFirst(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("DROP TABLE IF EXISTS chunks_3").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS chunks_3").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.CreateCollection(context.Background(), 3, true); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	if err := store.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("upsert nil: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected queries for empty upsert: %v", err)
	}
}

func TestUpsertWritesWithinTransaction(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO chunks_3")
	mock.ExpectExec("INSERT INTO chunks_3").WithArgs(
		int64(42), "chunk-1", "doc-1", "sec-1", "", "hello", "[0.1,0.2,0.3]",
	).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	items := []driven.UpsertItem{
		{
			NumericID: 42,
			Vector:    []float32{0.1, 0.2, 0.3},
			Chunk: domain.Chunk{
				ChunkID:   "chunk-1",
				DocID:     "doc-1",
				SectionID: "sec-1",
				Content:   "hello",
			},
		},
	}

	if err := store.Upsert(context.Background(), items); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpsertRollsBackOnExecError(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO chunks_3")
	mock.ExpectExec("INSERT INTO chunks_3").WillReturnError(errBrokenInsert)
	mock.ExpectRollback()

	items := []driven.UpsertItem{
		{NumericID: 1, Vector: []float32{0.1, 0.2, 0.3}, Chunk: domain.Chunk{ChunkID: "c1", DocID: "d1"}},
	}

	if err := store.Upsert(context.Background(), items); err == nil {
		t.Error("expected upsert to surface exec error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMatchOrdersBySimilarityDescending(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"chunk_id", "section_id", "content", "similarity"}).
		AddRow("c1", "s1", "first", 0.92).
		AddRow("c2", "s2", "second", 0.81)
	mock.ExpectQuery("SELECT chunk_id, section_id, content").
		WithArgs("[0.1,0.2,0.3]", "doc-1", 0.5, 5).
		WillReturnRows(rows)

	matches, err := store.Match(context.Background(), []float32{0.1, 0.2, 0.3}, "doc-1", 0.5, 5)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(matches) != 2 || matches[0].ChunkID != "c1" || matches[0].Similarity != 0.92 {
		t.Errorf("unexpected matches: %+v", matches)
	}
}

func TestBatchContextEmptyInputSkipsQuery(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	result, err := store.BatchContext(context.Background(), nil)
	if err != nil {
		t.Fatalf("batch context: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected empty map, got %v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected queries for empty batch context: %v", err)
	}
}

func TestBatchContextCapsSiblingsAtMaxSiblings(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"chunk_id", "content", "parent_content", "siblings"}).
		AddRow("c1", "target text", "parent text", "{sib1,sib2,sib3,sib4,sib5}")
	mock.ExpectQuery("SELECT c.chunk_id, c.content, p.content").WillReturnRows(rows)

	result, err := store.BatchContext(context.Background(), []string{"c1"})
	if err != nil {
		t.Fatalf("batch context: %v", err)
	}
	ctx, ok := result["c1"]
	if !ok {
		t.Fatal("expected entry for c1")
	}
	if ctx.Parent == nil || *ctx.Parent != "parent text" {
		t.Errorf("expected parent content, got %+v", ctx.Parent)
	}
	if len(ctx.Siblings) != domain.MaxSiblings {
		t.Errorf("expected siblings capped at %d, got %d", domain.MaxSiblings, len(ctx.Siblings))
	}
}

func TestDeleteByDocumentExecutesDelete(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM chunks_3 WHERE doc_id").WithArgs("doc-1").WillReturnResult(sqlmock.NewResult(0, 3))

	if err := store.DeleteByDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("delete by document: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
