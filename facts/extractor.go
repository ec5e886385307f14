package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/casegraph/discovery"
)

// LLMExtractor is the narrow external collaborator that turns one
// analytical unit of text into zero or more raw JSON fact candidates
// (spec §4.8). The default analytical unit is a chunk.
type LLMExtractor interface {
	Extract(ctx context.Context, text string, documentType discovery.DocumentType) (string, error)
}

// Embedder computes dense vectors for dedup comparison (spec §4.8); this
// mirrors encode.Embedder to avoid a package dependency cycle.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the persistence surface facts needs, satisfied by
// *vectorstore.Store.
type Store interface {
	UpsertFact(ctx context.Context, f discovery.Fact, dense []float32) error
	SimilarFacts(ctx context.Context, caseName string, dense []float32, topK int) ([]discovery.Fact, []float64, error)
}

const extractionFactNamespace = "7d3b0f1e-9c2a-4e6b-8f1a-3b5d7c9e1a2f"

var factNamespace = uuid.MustParse(extractionFactNamespace)

// Extractor runs gated fact extraction for a single document's chunks.
type Extractor struct {
	llm      LLMExtractor
	embedder Embedder
	store    Store
	cfg      discovery.FactDedupConfig
}

// New constructs an Extractor.
func New(llm LLMExtractor, embedder Embedder, store Store, cfg discovery.FactDedupConfig) *Extractor {
	if cfg.CosineSimilarity == 0 {
		cfg.CosineSimilarity = 0.95
	}
	if cfg.TextSimilarity == 0 {
		cfg.TextSimilarity = 0.9
	}
	return &Extractor{llm: llm, embedder: embedder, store: store, cfg: cfg}
}

// ExtractChunk runs extraction over one chunk of a gated document type,
// validates each candidate, dense-embeds survivors, and merges them
// against existing facts in the case (cross-document dedup, spec §9 Open
// Question #2) when both the cosine similarity and normalized-text
// similarity thresholds are met; otherwise it persists a new fact.
//
// Returns the facts that were newly created or updated (merged facts are
// returned with their full, post-merge chunkIds).
func (e *Extractor) ExtractChunk(ctx context.Context, caseName discovery.CaseName, documentType discovery.DocumentType, chunk discovery.Chunk) ([]discovery.Fact, error) {
	if !discovery.FactExtractionAllowed(documentType) {
		return nil, nil
	}

	raw, err := e.llm.Extract(ctx, chunk.Text, documentType)
	if err != nil {
		return nil, fmt.Errorf("facts: extraction call: %w", err)
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		return nil, fmt.Errorf("facts: parsing extraction output: %w", err)
	}

	var results []discovery.Fact
	for _, rawCandidate := range candidates {
		c, err := validateCandidate(rawCandidate)
		if err != nil {
			// Incomplete items are dropped, not fatal (spec §4.8).
			continue
		}

		dense, err := e.embedOne(ctx, c.Content)
		if err != nil {
			return nil, fmt.Errorf("facts: embedding candidate: %w", err)
		}

		fact := toFact(caseName, chunk.DocumentID, chunk.ID, chunk.Text, c)

		merged, err := e.mergeOrCreate(ctx, string(caseName), fact, dense)
		if err != nil {
			return nil, err
		}
		results = append(results, merged)
	}
	return results, nil
}

func (e *Extractor) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil || len(vecs) != 1 {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Extractor) mergeOrCreate(ctx context.Context, caseName string, fact discovery.Fact, dense []float32) (discovery.Fact, error) {
	candidates, sims, err := e.store.SimilarFacts(ctx, caseName, dense, 5)
	if err != nil {
		return discovery.Fact{}, fmt.Errorf("facts: similarity lookup: %w", err)
	}

	for i, existing := range candidates {
		if sims[i] < e.cfg.CosineSimilarity {
			continue
		}
		if textSimilarity(existing.Content, fact.Content) < e.cfg.TextSimilarity {
			continue
		}
		existing.ChunkIDs = appendUnique(existing.ChunkIDs, fact.ChunkIDs...)
		if err := e.store.UpsertFact(ctx, existing, nil); err != nil {
			return discovery.Fact{}, fmt.Errorf("facts: merging into existing fact: %w", err)
		}
		return existing, nil
	}

	if err := e.store.UpsertFact(ctx, fact, dense); err != nil {
		return discovery.Fact{}, fmt.Errorf("facts: persisting fact: %w", err)
	}
	return fact, nil
}

func toFact(caseName discovery.CaseName, documentID, chunkID, chunkText string, c candidate) discovery.Fact {
	id := uuid.NewSHA1(factNamespace, []byte(fmt.Sprintf("%s/%s/%s", caseName, documentID, c.Content))).String()

	var dateRefs []discovery.DateRef
	for _, d := range c.DateReferences {
		ref := discovery.DateRef{Raw: d.Raw}
		if d.Date != "" {
			if t, err := time.Parse("2006-01-02", d.Date); err == nil {
				ref.Date = t
			}
		}
		dateRefs = append(dateRefs, ref)
	}

	snippet := c.SourceSnippet
	if snippet == "" {
		snippet = extractSnippet(chunkText, c.Content)
	}

	return discovery.Fact{
		ID:             id,
		CaseName:       caseName,
		DocumentID:     documentID,
		ChunkIDs:       []string{chunkID},
		Content:        c.Content,
		Category:       c.Category,
		Entities:       c.Entities,
		DateReferences: dateRefs,
		Confidence:     c.Confidence,
		SourceSnippet:  snippet,
		ReviewStatus:   "pending",
	}
}

func appendUnique(existing []string, add ...string) []string {
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range add {
		if !seen[id] {
			existing = append(existing, id)
			seen[id] = true
		}
	}
	return existing
}

// parseCandidates accepts either a bare JSON array of candidates or a
// single JSON object (treated as a one-element array), matching the
// looseness LLM structured output typically requires.
func parseCandidates(raw string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, nil
}

// textSimilarity is a lightweight Jaccard similarity over lowercased word
// sets, used only as the secondary gate alongside cosine similarity
// (spec §4.8: "cosine >= threshold AND normalized-text-similarity >=
// threshold").
func textSimilarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	intersection := 0
	for w := range wa {
		if wb[w] {
			intersection++
		}
	}
	union := len(wa) + len(wb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out[cur.String()] = true
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return out
}
