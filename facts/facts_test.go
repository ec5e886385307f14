package facts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/casegraph/discovery"
)

type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) Extract(ctx context.Context, text string, dt discovery.DocumentType) (string, error) {
	s.calls++
	return s.response, s.err
}

type stubEmbedder struct{ vec []float32 }

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

type stubStore struct {
	upserted []discovery.Fact
	similar  []discovery.Fact
	sims     []float64
}

func (s *stubStore) UpsertFact(ctx context.Context, f discovery.Fact, dense []float32) error {
	s.upserted = append(s.upserted, f)
	return nil
}

func (s *stubStore) SimilarFacts(ctx context.Context, caseName string, dense []float32, topK int) ([]discovery.Fact, []float64, error) {
	return s.similar, s.sims, nil
}

func TestExtractChunk_GatedByDocumentType(t *testing.T) {
	llm := &stubLLM{response: `[{"content":"x","category":"c","confidence":0.9}]`}
	store := &stubStore{}
	e := New(llm, &stubEmbedder{vec: []float32{1, 0}}, store, discovery.FactDedupConfig{})

	chunk := discovery.Chunk{ID: "c1", DocumentID: "d1", Text: "some contract clause"}
	facts, err := e.ExtractChunk(context.Background(), "case-a", discovery.Contract, chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected no facts for non-gated document type, got %d", len(facts))
	}
	if llm.calls != 0 {
		t.Fatal("expected LLM not to be called for a non-gated document type")
	}
}

func TestExtractChunk_ValidCandidateIsPersisted(t *testing.T) {
	llm := &stubLLM{response: `[{"content":"The plaintiff was injured on 2021-05-01","category":"injury","confidence":0.85}]`}
	store := &stubStore{}
	e := New(llm, &stubEmbedder{vec: []float32{1, 0}}, store, discovery.FactDedupConfig{})

	chunk := discovery.Chunk{ID: "c1", DocumentID: "d1", Text: "deposition testimony"}
	facts, err := e.ExtractChunk(context.Background(), "case-a", discovery.Deposition, chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(facts))
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(store.upserted))
	}
}

func TestExtractChunk_InvalidCandidateDropped(t *testing.T) {
	llm := &stubLLM{response: `[{"content":"","category":"c","confidence":0.9}]`}
	store := &stubStore{}
	e := New(llm, &stubEmbedder{vec: []float32{1, 0}}, store, discovery.FactDedupConfig{})

	chunk := discovery.Chunk{ID: "c1", DocumentID: "d1", Text: "witness statement"}
	facts, err := e.ExtractChunk(context.Background(), "case-a", discovery.WitnessStatement, chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected empty content candidate to be dropped, got %d facts", len(facts))
	}
}

func TestExtractChunk_MergesNearDuplicateAcrossDocuments(t *testing.T) {
	llm := &stubLLM{response: `[{"content":"The truck was traveling 65 mph at impact","category":"incident","confidence":0.9}]`}
	existing := discovery.Fact{ID: "fact-1", Content: "The truck was traveling 65 mph at impact", ChunkIDs: []string{"other-chunk"}}
	store := &stubStore{similar: []discovery.Fact{existing}, sims: []float64{0.99}}
	e := New(llm, &stubEmbedder{vec: []float32{1, 0}}, store, discovery.FactDedupConfig{CosineSimilarity: 0.95, TextSimilarity: 0.9})

	chunk := discovery.Chunk{ID: "c2", DocumentID: "d2", Text: "incident report"}
	facts, err := e.ExtractChunk(context.Background(), "case-a", discovery.IncidentReport, chunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 || facts[0].ID != "fact-1" {
		t.Fatalf("expected merge into existing fact-1, got %+v", facts)
	}
	if len(facts[0].ChunkIDs) != 2 {
		t.Fatalf("expected merged fact to carry both chunk ids, got %v", facts[0].ChunkIDs)
	}
}

type stubEditStore struct {
	facts     []discovery.Fact
	deleted   map[string]discovery.FactEdit
	lastDense []float32
}

func (s *stubEditStore) FactsByDocument(ctx context.Context, caseName, documentID string) ([]discovery.Fact, error) {
	return s.facts, nil
}

func (s *stubEditStore) UpsertFact(ctx context.Context, f discovery.Fact, dense []float32) error {
	s.lastDense = dense
	for i, existing := range s.facts {
		if existing.ID == f.ID {
			s.facts[i] = f
			return nil
		}
	}
	return fmt.Errorf("not found")
}

func (s *stubEditStore) MarkFactDeleted(ctx context.Context, caseName, factID string, edit discovery.FactEdit) error {
	if s.deleted == nil {
		s.deleted = make(map[string]discovery.FactEdit)
	}
	s.deleted[factID] = edit
	return nil
}

func TestEditFact_AppendsHistory(t *testing.T) {
	store := &stubEditStore{facts: []discovery.Fact{{ID: "f1", Content: "old"}}}
	if err := EditFact(context.Background(), store, nil, "case-a", "d1", "f1", "new", "user-1", "correction", time.Now()); err != nil {
		t.Fatal(err)
	}
	if store.facts[0].Content != "new" {
		t.Fatalf("expected content updated, got %q", store.facts[0].Content)
	}
	if len(store.facts[0].EditHistory) != 1 || store.facts[0].EditHistory[0].Previous != "old" {
		t.Fatalf("expected edit history to record previous content, got %+v", store.facts[0].EditHistory)
	}
}

func TestEditFact_ReembedsWhenEmbedderProvided(t *testing.T) {
	store := &stubEditStore{facts: []discovery.Fact{{ID: "f1", Content: "old"}}}
	embedder := &stubEmbedder{vec: []float32{0.5, 0.5}}
	if err := EditFact(context.Background(), store, embedder, "case-a", "d1", "f1", "new", "user-1", "correction", time.Now()); err != nil {
		t.Fatal(err)
	}
	if store.lastDense == nil {
		t.Fatal("expected re-embedded vector to be passed to UpsertFact")
	}
}

func TestDeleteFact_RecordsDeleteAction(t *testing.T) {
	store := &stubEditStore{}
	if err := DeleteFact(context.Background(), store, "case-a", "f1", "user-1", "duplicate", time.Now()); err != nil {
		t.Fatal(err)
	}
	if store.deleted["f1"].Action != "delete" {
		t.Fatalf("expected delete action recorded, got %+v", store.deleted["f1"])
	}
}
