// Package registry implements the per-case document registry and
// content-hash deduplication of spec §4.7: contentHash is the dedup key,
// a secondary metadataHash detects "same file, new production" without
// ever driving dedup decisions, and DocumentRegistry reads/writes are
// serialized per case with a case-keyed mutex (spec §5).
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/casegraph/discovery"
)

// Store is the narrow persistence surface the registry needs, satisfied
// by *vectorstore.Store.
type Store interface {
	UpsertDocument(ctx context.Context, doc discovery.Document, metadataHash string) error
	GetDuplicateRecord(ctx context.Context, caseName, contentHash string) (*discovery.DuplicateRecord, error)
	PutDuplicateRecord(ctx context.Context, caseName string, rec discovery.DuplicateRecord) error
}

// Registry serializes content-hash dedup decisions per case.
type Registry struct {
	store Store

	mu    sync.Mutex
	locks map[discovery.CaseName]*sync.Mutex
}

// New constructs a Registry over the given persistence layer.
func New(store Store) *Registry {
	return &Registry{store: store, locks: make(map[discovery.CaseName]*sync.Mutex)}
}

func (r *Registry) caseLock(caseName discovery.CaseName) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[caseName]
	if !ok {
		l = &sync.Mutex{}
		r.locks[caseName] = l
	}
	return l
}

// ContentHash computes the spec §4.7 dedup key: SHA-256 of the raw file
// bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MetadataHash computes the secondary "same file, new production"
// detection key (spec §4.7): SHA-256 of normalized
// fileName∥size∥segmentCount∥documentType. It is exposed for reporting
// only and never drives a dedup decision.
func MetadataHash(fileName string, sizeBytes int64, segmentCount int, documentType discovery.DocumentType) string {
	normalized := fmt.Sprintf("%s\x00%d\x00%d\x00%s", fileName, sizeBytes, segmentCount, documentType)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Outcome is the result of registering a document.
type Outcome struct {
	Duplicate  bool
	PrimaryID  string // set when Duplicate; the existing document's id
}

// Register performs the read-then-write dedup check of spec §4.1 step 2a:
// if contentHash already exists in this case, it is recorded as an
// additional sighting and Duplicate=true is returned so the caller can
// publish document.duplicate and skip reprocessing; otherwise the new
// document is persisted as the primary record for that hash.
//
// Cross-case deduplication never happens: identical bytes in two cases
// are two independent documents (spec §4.7).
func (r *Registry) Register(ctx context.Context, doc discovery.Document, path string) (Outcome, error) {
	lock := r.caseLock(doc.CaseName)
	lock.Lock()
	defer lock.Unlock()

	existing, err := r.store.GetDuplicateRecord(ctx, string(doc.CaseName), doc.ContentHash)
	if err != nil {
		return Outcome{}, fmt.Errorf("registry: looking up duplicate record: %w", err)
	}
	if existing != nil {
		existing.AdditionalLocations = append(existing.AdditionalLocations, discovery.DuplicateLocation{
			CaseName: doc.CaseName,
			Path:     path,
		})
		if err := r.store.PutDuplicateRecord(ctx, string(doc.CaseName), *existing); err != nil {
			return Outcome{}, fmt.Errorf("registry: recording additional location: %w", err)
		}
		return Outcome{Duplicate: true, PrimaryID: existing.PrimaryDocumentID}, nil
	}

	if err := r.store.PutDuplicateRecord(ctx, string(doc.CaseName), discovery.DuplicateRecord{
		ContentHash:       doc.ContentHash,
		PrimaryDocumentID: doc.ID,
	}); err != nil {
		return Outcome{}, fmt.Errorf("registry: creating duplicate record: %w", err)
	}
	return Outcome{Duplicate: false}, nil
}

// PersistDocument writes the Document row plus its metadataHash. Called
// once, after Register reports a non-duplicate.
func (r *Registry) PersistDocument(ctx context.Context, doc discovery.Document, metadataHash string) error {
	return r.store.UpsertDocument(ctx, doc, metadataHash)
}
