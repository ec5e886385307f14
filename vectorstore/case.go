package vectorstore

import (
	"fmt"
)

// Collection names per spec §4.6: <case>_chunks, <case>_chunks_hybrid,
// <case>_facts, <case>_depositions, <case>_exhibits, <case>_timeline.
const (
	CollChunks       = "chunks"
	CollChunksHybrid = "chunks_hybrid"
	CollFacts        = "facts"
	CollDepositions  = "depositions"
	CollExhibits     = "exhibits"
	CollTimeline     = "timeline"
)

var allCaseCollections = []string{
	CollChunks, CollChunksHybrid, CollFacts, CollDepositions, CollExhibits, CollTimeline,
}

// CollectionName renders the case-prefixed collection identifier used in
// external-facing reporting (spec §4.6, §6.1).
func CollectionName(caseName, suffix string) string {
	return sanitizeCaseName(caseName) + "_" + suffix
}

// IsSharedCollection reports whether name is one of the configured
// shared, cross-case collections.
func (s *Store) IsSharedCollection(name string) bool {
	for _, c := range s.cfg.SharedCollections {
		if c == name {
			return true
		}
	}
	return false
}

// ValidateCollection enforces the case-isolation invariant of spec §4.6:
// "the adapter refuses any call whose requested collection does not start
// with the active case's identifier or is not in the shared set."
func (s *Store) ValidateCollection(caseName, collection string) error {
	if s.IsSharedCollection(collection) {
		return nil
	}
	prefix := sanitizeCaseName(caseName) + "_"
	if len(collection) <= len(prefix) || collection[:len(prefix)] != prefix {
		return fmt.Errorf("vectorstore: collection %q is not owned by case %q: %w", collection, caseName, ErrCrossCaseAccess)
	}
	return nil
}

// EnsureCollections creates (idempotently) the per-case database and
// reports, per collection, whether it currently holds any rows — except
// the chunks collection, which is always reported present. The "hybrid"
// collection is reported absent until at least one chunk has a sparse
// token, letting Search degrade to dense-only gracefully.
func (s *Store) EnsureCollections(caseName string) (map[string]bool, error) {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(allCaseCollections))
	for _, name := range allCaseCollections {
		present[name] = true
	}

	var hybridCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunk_keyword_tokens LIMIT 1`).Scan(&hybridCount); err != nil {
		return nil, err
	}
	if hybridCount == 0 {
		var citationCount int
		if err := db.QueryRow(`SELECT COUNT(*) FROM chunk_citation_tokens LIMIT 1`).Scan(&citationCount); err != nil {
			return nil, err
		}
		present[CollChunksHybrid] = citationCount > 0
	}

	for _, coll := range []struct {
		name  string
		query string
	}{
		{CollDepositions, `SELECT COUNT(*) FROM aux_depositions LIMIT 1`},
		{CollExhibits, `SELECT COUNT(*) FROM aux_exhibits LIMIT 1`},
		{CollTimeline, `SELECT COUNT(*) FROM aux_timeline LIMIT 1`},
		{CollFacts, `SELECT COUNT(*) FROM facts LIMIT 1`},
	} {
		var count int
		if err := db.QueryRow(coll.query).Scan(&count); err != nil {
			return nil, err
		}
		present[coll.name] = count > 0
	}

	return present, nil
}
