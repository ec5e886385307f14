package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/casegraph/discovery"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s := New(Config{
		StorageDir:        dir,
		EmbeddingDim:      4,
		SharedCollections: []string{"florida_statutes"},
	})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestValidateCollection_RefusesCrossCaseAccess(t *testing.T) {
	s := testStore(t)
	if err := s.ValidateCollection("smith-v-jones", "other_case_chunks"); err == nil {
		t.Fatal("expected cross-case collection access to be refused")
	}
	if err := s.ValidateCollection("smith-v-jones", CollectionName("smith-v-jones", CollChunks)); err != nil {
		t.Fatalf("expected own collection to validate, got %v", err)
	}
	if err := s.ValidateCollection("smith-v-jones", "florida_statutes"); err != nil {
		t.Fatalf("expected shared collection to validate, got %v", err)
	}
}

func TestEnsureCollections_CreatesSeparateFilePerCase(t *testing.T) {
	s := testStore(t)
	if _, err := s.EnsureCollections("smith-v-jones"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.EnsureCollections("doe-v-acme"); err != nil {
		t.Fatal(err)
	}
	p1 := s.casePath("smith-v-jones")
	p2 := s.casePath("doe-v-acme")
	if p1 == p2 {
		t.Fatal("expected distinct per-case database files")
	}
	if filepath.Base(p1) == filepath.Base(p2) {
		t.Fatal("expected distinct filenames")
	}
}

func TestUpsertAndSearchChunks_DenseOnlyDegradation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	caseName := "smith-v-jones"

	chunks := []discovery.Chunk{
		{
			ID:          ChunkID(discovery.CaseName(caseName), "doc-1", "seg-1", 0),
			CaseName:    discovery.CaseName(caseName),
			DocumentID:  "doc-1",
			SegmentID:   "seg-1",
			Ordinal:     0,
			Text:        "first chunk text",
			DenseVector: []float32{1, 0, 0, 0},
			TokenCount:  3,
			Metadata:    discovery.ChunkMetadata{DocumentType: discovery.Deposition},
		},
		{
			ID:          ChunkID(discovery.CaseName(caseName), "doc-1", "seg-1", 1),
			CaseName:    discovery.CaseName(caseName),
			DocumentID:  "doc-1",
			SegmentID:   "seg-1",
			Ordinal:     1,
			Text:        "second chunk text",
			DenseVector: []float32{0, 1, 0, 0},
			TokenCount:  3,
			Metadata:    discovery.ChunkMetadata{DocumentType: discovery.Deposition},
		},
	}

	if err := s.UpsertChunks(ctx, caseName, chunks, discovery.RetryConfig{MaxAttempts: 3}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, caseName, SearchRequest{DenseVector: []float32{1, 0, 0, 0}, TopK: 5}, discovery.RRFConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].ChunkID != chunks[0].ID {
		t.Fatalf("expected closest vector first, got %s", hits[0].ChunkID)
	}
	for _, h := range hits {
		for _, m := range h.Methods {
			if m != "dense" {
				t.Fatalf("expected dense-only degradation with no sparse tokens, got method %q", m)
			}
		}
	}
}

func TestUpsertChunks_IdempotentOnRetry(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	caseName := "smith-v-jones"

	chunk := discovery.Chunk{
		ID:          ChunkID(discovery.CaseName(caseName), "doc-1", "seg-1", 0),
		CaseName:    discovery.CaseName(caseName),
		DocumentID:  "doc-1",
		SegmentID:   "seg-1",
		Ordinal:     0,
		Text:        "idempotent chunk",
		DenseVector: []float32{1, 0, 0, 0},
		TokenCount:  2,
	}

	if err := s.UpsertChunks(ctx, caseName, []discovery.Chunk{chunk}, discovery.RetryConfig{MaxAttempts: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertChunks(ctx, caseName, []discovery.Chunk{chunk}, discovery.RetryConfig{MaxAttempts: 1}); err != nil {
		t.Fatal(err)
	}

	db, err := s.dbForCase(caseName)
	if err != nil {
		t.Fatal(err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE id = ?`, chunk.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 row after re-upsert, got %d", count)
	}
}

func TestDeleteDocument_RemovesChunks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	caseName := "smith-v-jones"

	chunks := []discovery.Chunk{
		{ID: ChunkID(discovery.CaseName(caseName), "doc-1", "seg-1", 0), DocumentID: "doc-1", SegmentID: "seg-1", Text: "a"},
		{ID: ChunkID(discovery.CaseName(caseName), "doc-1", "seg-1", 1), DocumentID: "doc-1", SegmentID: "seg-1", Ordinal: 1, Text: "b"},
	}
	if err := s.UpsertChunks(ctx, caseName, chunks, discovery.RetryConfig{MaxAttempts: 1}); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeleteDocument(ctx, caseName, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 chunks removed, got %d", n)
	}
}

func TestChunkID_DeterministicAcrossCalls(t *testing.T) {
	a := ChunkID("case-a", "doc-1", "seg-1", 3)
	b := ChunkID("case-a", "doc-1", "seg-1", 3)
	c := ChunkID("case-a", "doc-1", "seg-1", 4)
	if a != b {
		t.Fatal("expected deterministic chunk id for identical inputs")
	}
	if a == c {
		t.Fatal("expected distinct chunk id for distinct ordinal")
	}
}
