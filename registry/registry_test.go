package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/casegraph/discovery"
)

type fakeStore struct {
	mu        sync.Mutex
	records   map[string]discovery.DuplicateRecord
	documents map[string]string // id -> metadataHash
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]discovery.DuplicateRecord), documents: make(map[string]string)}
}

func (f *fakeStore) UpsertDocument(ctx context.Context, doc discovery.Document, metadataHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents[doc.ID] = metadataHash
	return nil
}

func (f *fakeStore) GetDuplicateRecord(ctx context.Context, caseName, contentHash string) (*discovery.DuplicateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[caseName+"/"+contentHash]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStore) PutDuplicateRecord(ctx context.Context, caseName string, rec discovery.DuplicateRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[caseName+"/"+rec.ContentHash] = rec
	return nil
}

func TestRegister_FirstIngestIsPrimary(t *testing.T) {
	r := New(newFakeStore())
	doc := discovery.Document{ID: "doc-1", CaseName: "smith-v-jones", ContentHash: "abc"}

	out, err := r.Register(context.Background(), doc, "/incoming/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if out.Duplicate {
		t.Fatal("expected first ingest to not be a duplicate")
	}
}

func TestRegister_SecondIngestSameCaseIsDuplicate(t *testing.T) {
	store := newFakeStore()
	r := New(store)
	caseName := discovery.CaseName("smith-v-jones")

	first := discovery.Document{ID: "doc-1", CaseName: caseName, ContentHash: "abc"}
	if _, err := r.Register(context.Background(), first, "/incoming/a.pdf"); err != nil {
		t.Fatal(err)
	}

	second := discovery.Document{ID: "doc-2", CaseName: caseName, ContentHash: "abc"}
	out, err := r.Register(context.Background(), second, "/incoming/a-copy.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Duplicate {
		t.Fatal("expected second ingest of identical bytes to be a duplicate")
	}
	if out.PrimaryID != "doc-1" {
		t.Fatalf("expected primary id doc-1, got %s", out.PrimaryID)
	}

	rec, err := store.GetDuplicateRecord(context.Background(), string(caseName), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.AdditionalLocations) != 1 {
		t.Fatalf("expected 1 additional location, got %d", len(rec.AdditionalLocations))
	}
}

func TestRegister_SameContentDifferentCaseIsNotDuplicate(t *testing.T) {
	r := New(newFakeStore())

	first := discovery.Document{ID: "doc-1", CaseName: "smith-v-jones", ContentHash: "abc"}
	if _, err := r.Register(context.Background(), first, "/incoming/a.pdf"); err != nil {
		t.Fatal(err)
	}

	second := discovery.Document{ID: "doc-2", CaseName: "doe-v-acme", ContentHash: "abc"}
	out, err := r.Register(context.Background(), second, "/incoming/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if out.Duplicate {
		t.Fatal("expected identical bytes in a different case to never be treated as a duplicate")
	}
}

func TestMetadataHash_DiffersOnDocumentTypeChange(t *testing.T) {
	a := MetadataHash("file.pdf", 1024, 3, discovery.Deposition)
	b := MetadataHash("file.pdf", 1024, 3, discovery.Motion)
	if a == b {
		t.Fatal("expected metadataHash to differ when documentType differs")
	}
}

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash([]byte("hello"))
	b := ContentHash([]byte("hello"))
	if a != b {
		t.Fatal("expected deterministic content hash")
	}
}
