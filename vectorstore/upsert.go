package vectorstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/casegraph/discovery"
)

// fullJitterDelay implements the "exponential backoff with full jitter"
// retry policy required for idempotent vector-store writes: a random delay
// uniformly drawn from [0, min(ceiling, base*2^attempt)).
func fullJitterDelay(ceiling time.Duration) retry.DelayTypeFunc {
	const base = 200 * time.Millisecond
	return func(n uint, _ error, _ *retry.Config) time.Duration {
		cap := time.Duration(1<<n) * base
		if cap > ceiling || cap <= 0 {
			cap = ceiling
		}
		if cap <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(cap)))
	}
}

// chunkNamespace is the fixed namespace for deterministic UUID v5 chunk
// ids, derived from (caseName, documentId, segmentId, ordinal) per spec
// §3's Chunk.id invariant.
var chunkNamespace = uuid.MustParse("7c2a9e0a-7b1e-4f0b-9c3e-2f6a1d8b5c4d")

// ChunkID computes the deterministic UUID v5 chunk identifier.
func ChunkID(caseName discovery.CaseName, documentID, segmentID string, ordinal int) string {
	name := fmt.Sprintf("%s/%s/%s/%d", caseName, documentID, segmentID, ordinal)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

const upsertBatchSize = 64

// UpsertChunks persists chunks (payload, dense vector, sparse tokens) in
// batches of 64, retried with exponential backoff + full jitter (spec §7:
// "idempotent operations ... retried, max 5 attempts, ceiling 30s"). Chunk
// ids are assigned deterministically so retries and re-ingests of the same
// logical chunk overwrite rather than duplicate.
func (s *Store) UpsertChunks(ctx context.Context, caseName string, chunks []discovery.Chunk, retryCfg discovery.RetryConfig) error {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		attempts := retryCfg.MaxAttempts
		if attempts == 0 {
			attempts = 1
		}
		err := retry.Do(
			func() error { return upsertChunkBatch(ctx, db, batch) },
			retry.Attempts(attempts),
			retry.MaxDelay(retryCfg.Ceiling),
			retry.DelayType(fullJitterDelay(retryCfg.Ceiling)),
			retry.Context(ctx),
		)
		if err != nil {
			return fmt.Errorf("vectorstore: upserting chunk batch: %w", err)
		}
	}
	return nil
}

func upsertChunkBatch(ctx context.Context, db *sql.DB, batch []discovery.Chunk) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range batch {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling chunk metadata: %w", err)
		}

		sum := sha256.Sum256([]byte(c.Text))
		contentHash := hex.EncodeToString(sum[:])

		res, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, segment_id, ordinal, content, content_hash, token_count, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content = excluded.content,
				content_hash = excluded.content_hash,
				token_count = excluded.token_count,
				metadata = excluded.metadata
		`, c.ID, c.DocumentID, c.SegmentID, c.Ordinal, c.Text, contentHash, c.TokenCount, string(meta))
		if err != nil {
			return fmt.Errorf("upserting chunk row: %w", err)
		}

		rowid, err := chunkRowID(ctx, tx, c.ID, res)
		if err != nil {
			return err
		}

		if len(c.DenseVector) > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO vec_chunks (rowid_internal, embedding) VALUES (?, ?)`,
				rowid, serializeFloat32(c.DenseVector)); err != nil {
				return fmt.Errorf("upserting dense vector: %w", err)
			}
		}

		if err := replaceTokenRows(ctx, tx, "chunk_keyword_tokens", rowid, c.SparseKeywords); err != nil {
			return err
		}
		if err := replaceTokenRows(ctx, tx, "chunk_citation_tokens", rowid, c.SparseCitations); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func chunkRowID(ctx context.Context, tx *sql.Tx, id string, res sql.Result) (int64, error) {
	if rowid, err := res.LastInsertId(); err == nil && rowid != 0 {
		return rowid, nil
	}
	var rowid int64
	err := tx.QueryRowContext(ctx, `SELECT rowid_internal FROM chunks WHERE id = ?`, id).Scan(&rowid)
	return rowid, err
}

func replaceTokenRows(ctx context.Context, tx *sql.Tx, table string, rowid int64, tokens map[uint32]float32) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE rowid_internal = ?`, table), rowid); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	for tokenHash, weight := range tokens {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (rowid_internal, token_hash, weight) VALUES (?, ?, ?)`, table),
			rowid, int64(tokenHash), float64(weight)); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}
	return nil
}

// serializeFloat32 little-endian packs a float32 vector for sqlite-vec's
// raw vec0 column format, matching the teacher's store package.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
