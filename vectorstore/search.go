package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/casegraph/discovery"
)

// Hit is one ranked search result (spec §4.6 hybrid search).
type Hit struct {
	ChunkID  string
	Score    float64
	Text     string
	Metadata discovery.ChunkMetadata
	Methods  []string
}

// SearchRequest carries the three signals a query can supply; any may be
// empty, in which case that method contributes nothing to the fusion.
type SearchRequest struct {
	DenseVector     []float32
	SparseKeywords  map[uint32]float32
	SparseCitations map[uint32]float32
	TopK            int
}

// Search performs RRF-fused hybrid search within one case's chunk
// collection (spec §4.6). It degrades to dense-only when the case has no
// populated sparse tokens (the "hybrid" collection is absent).
func (s *Store) Search(ctx context.Context, caseName string, req SearchRequest, rrf discovery.RRFConfig) ([]Hit, error) {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return nil, err
	}
	if req.TopK <= 0 {
		req.TopK = 20
	}

	var denseRanked, keywordRanked, citationRanked []rowidScore

	if len(req.DenseVector) > 0 {
		rows, err := db.QueryContext(ctx, `
			SELECT rowid_internal, distance FROM vec_chunks
			WHERE embedding MATCH ? AND k = ?
			ORDER BY distance
		`, serializeFloat32(req.DenseVector), req.TopK*4)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var r rowidScore
			var dist float64
			if err := rows.Scan(&r.rowid, &dist); err != nil {
				rows.Close()
				return nil, err
			}
			r.score = 1 - dist
			denseRanked = append(denseRanked, r)
		}
		rows.Close()
	}

	hybridPresent, err := s.hasHybridTokens(db)
	if err != nil {
		return nil, err
	}

	if hybridPresent && len(req.SparseKeywords) > 0 {
		keywordRanked, err = sparseLookup(ctx, db, "chunk_keyword_tokens", req.SparseKeywords, req.TopK*4)
		if err != nil {
			return nil, err
		}
	}
	if hybridPresent && len(req.SparseCitations) > 0 {
		citationRanked, err = sparseLookup(ctx, db, "chunk_citation_tokens", req.SparseCitations, req.TopK*4)
		if err != nil {
			return nil, err
		}
	}

	fused := fuseRRF(denseRanked, keywordRanked, citationRanked, rrf)
	if len(fused) > req.TopK {
		fused = fused[:req.TopK]
	}

	hits := make([]Hit, 0, len(fused))
	for _, f := range fused {
		hit, err := loadHit(ctx, db, f.rowid)
		if err != nil {
			return nil, err
		}
		hit.Score = f.score
		hit.Methods = f.methods
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *Store) hasHybridTokens(db *sql.DB) (bool, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunk_keyword_tokens LIMIT 1`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunk_citation_tokens LIMIT 1`).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowidScore struct {
	rowid int64
	score float64
}

func sparseLookup(ctx context.Context, db *sql.DB, table string, query map[uint32]float32, limit int) ([]rowidScore, error) {
	if len(query) == 0 {
		return nil, nil
	}
	hashes := make([]int64, 0, len(query))
	weights := make(map[int64]float64, len(query))
	for h, w := range query {
		hashes = append(hashes, int64(h))
		weights[int64(h)] = float64(w)
	}

	placeholders := make([]any, len(hashes))
	for i, h := range hashes {
		placeholders[i] = h
	}

	rows, err := db.QueryContext(ctx, buildInQuery(table, len(hashes)), placeholders...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[int64]float64)
	for rows.Next() {
		var rowid, tokenHash int64
		var weight float64
		if err := rows.Scan(&rowid, &tokenHash, &weight); err != nil {
			return nil, err
		}
		scores[rowid] += weight * weights[tokenHash]
	}

	out := make([]rowidScore, 0, len(scores))
	for rowid, score := range scores {
		out = append(out, rowidScore{rowid, score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func buildInQuery(table string, n int) string {
	q := "SELECT rowid_internal, token_hash, weight FROM " + table + " WHERE token_hash IN ("
	for i := 0; i < n; i++ {
		if i > 0 {
			q += ","
		}
		q += "?"
	}
	return q + ")"
}

func loadHit(ctx context.Context, db *sql.DB, rowid int64) (Hit, error) {
	var id, content, metaJSON string
	err := db.QueryRowContext(ctx, `SELECT id, content, metadata FROM chunks WHERE rowid_internal = ?`, rowid).
		Scan(&id, &content, &metaJSON)
	if err != nil {
		return Hit{}, err
	}
	var meta discovery.ChunkMetadata
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return Hit{}, err
	}
	return Hit{ChunkID: id, Text: content, Metadata: meta}, nil
}

type fusedHit struct {
	rowid   int64
	score   float64
	methods []string
}

// fuseRRF is Reciprocal Rank Fusion (spec §4.6: "RRF with k=60"), adapted
// directly from the teacher's retrieval fusion.
func fuseRRF(dense, keyword, citation []rowidScore, cfg discovery.RRFConfig) []fusedHit {
	if cfg.K == 0 {
		cfg.K = 60
	}
	if cfg.WeightDense == 0 && cfg.WeightKeyword == 0 && cfg.WeightCitation == 0 {
		cfg.WeightDense, cfg.WeightKeyword, cfg.WeightCitation = 1, 1, 1
	}

	fused := make(map[int64]*fusedHit)
	add := func(results []rowidScore, weight float64, method string) {
		for rank, r := range results {
			f, ok := fused[r.rowid]
			if !ok {
				f = &fusedHit{rowid: r.rowid}
				fused[r.rowid] = f
			}
			f.score += weight / float64(cfg.K+rank+1)
			f.methods = append(f.methods, method)
		}
	}
	add(dense, cfg.WeightDense, "dense")
	add(keyword, cfg.WeightKeyword, "keyword")
	add(citation, cfg.WeightCitation, "citation")

	out := make([]fusedHit, 0, len(fused))
	for _, f := range fused {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}
