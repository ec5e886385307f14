package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// UpsertShared writes one chunk into a cross-case shared collection
// (spec §3 SharedCollection: florida_statutes, fmcsr_regulations,
// federal_rules, case_law_precedents — loaded once, read by every case).
func (s *Store) UpsertShared(ctx context.Context, collection, id, content string, dense []float32, metadata any) error {
	if !s.IsSharedCollection(collection) {
		return fmt.Errorf("vectorstore: %q is not a configured shared collection: %w", collection, ErrCrossCaseAccess)
	}
	db, err := s.dbForShared()
	if err != nil {
		return err
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO shared_chunks (id, collection, content, metadata) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata
	`, id, collection, content, string(meta))
	if err != nil {
		return fmt.Errorf("vectorstore: upserting shared chunk: %w", err)
	}

	if len(dense) > 0 {
		rowid, _ := res.LastInsertId()
		if rowid == 0 {
			if err := db.QueryRowContext(ctx, `SELECT rowid_internal FROM shared_chunks WHERE id = ?`, id).Scan(&rowid); err != nil {
				return err
			}
		}
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO vec_shared_chunks (rowid_internal, embedding) VALUES (?, ?)`,
			rowid, serializeFloat32(dense)); err != nil {
			return fmt.Errorf("vectorstore: upserting shared vector: %w", err)
		}
	}
	return nil
}

// SharedHit is one ranked shared-collection result.
type SharedHit struct {
	ID       string
	Score    float64
	Content  string
	Metadata json.RawMessage
}

// SearchShared performs dense KNN search within one shared collection.
func (s *Store) SearchShared(ctx context.Context, collection string, dense []float32, topK int) ([]SharedHit, error) {
	if !s.IsSharedCollection(collection) {
		return nil, fmt.Errorf("vectorstore: %q is not a configured shared collection: %w", collection, ErrCrossCaseAccess)
	}
	db, err := s.dbForShared()
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 20
	}

	rows, err := db.QueryContext(ctx, `
		SELECT c.id, v.distance, c.content, c.metadata
		FROM vec_shared_chunks v
		JOIN shared_chunks c ON c.rowid_internal = v.rowid_internal
		WHERE v.embedding MATCH ? AND k = ? AND c.collection = ?
		ORDER BY v.distance
	`, serializeFloat32(dense), topK, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SharedHit
	for rows.Next() {
		var h SharedHit
		var distance float64
		var meta string
		if err := rows.Scan(&h.ID, &distance, &h.Content, &meta); err != nil {
			return nil, err
		}
		h.Score = 1 - distance
		h.Metadata = json.RawMessage(meta)
		out = append(out, h)
	}
	return out, rows.Err()
}
