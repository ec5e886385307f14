package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/casegraph/discovery"
)

// UpsertFact persists a Fact and its dense embedding (spec §4.8). Facts
// are dense-only: they are surfaced by category/document filters and by
// embedding similarity during dedup, never by keyword/citation search.
func (s *Store) UpsertFact(ctx context.Context, f discovery.Fact, dense []float32) error {
	db, err := s.dbForCase(string(f.CaseName))
	if err != nil {
		return err
	}

	chunkIDs, err := json.Marshal(f.ChunkIDs)
	if err != nil {
		return err
	}
	entities, err := json.Marshal(f.Entities)
	if err != nil {
		return err
	}
	dateRefs, err := json.Marshal(f.DateReferences)
	if err != nil {
		return err
	}
	editHistory, err := json.Marshal(f.EditHistory)
	if err != nil {
		return err
	}
	var bbox []byte
	if f.BBox != nil {
		bbox, err = json.Marshal(*f.BBox)
		if err != nil {
			return err
		}
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO facts (id, document_id, category, content, chunk_ids, entities, date_references,
			confidence, source_snippet, page, bbox, is_edited, is_deleted, edit_history, review_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			chunk_ids = excluded.chunk_ids,
			entities = excluded.entities,
			date_references = excluded.date_references,
			confidence = excluded.confidence,
			is_edited = excluded.is_edited,
			is_deleted = excluded.is_deleted,
			edit_history = excluded.edit_history,
			review_status = excluded.review_status,
			updated_at = CURRENT_TIMESTAMP
	`, f.ID, f.DocumentID, f.Category, f.Content, string(chunkIDs), string(entities), string(dateRefs),
		f.Confidence, f.SourceSnippet, f.Page, string(bbox), boolToInt(f.IsEdited), boolToInt(f.IsDeleted),
		string(editHistory), f.ReviewStatus)
	if err != nil {
		return fmt.Errorf("vectorstore: upserting fact: %w", err)
	}

	if len(dense) > 0 {
		rowid, _ := res.LastInsertId()
		if rowid == 0 {
			if err := db.QueryRowContext(ctx, `SELECT rowid_internal FROM facts WHERE id = ?`, f.ID).Scan(&rowid); err != nil {
				return err
			}
		}
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO vec_facts (rowid_internal, embedding) VALUES (?, ?)`,
			rowid, serializeFloat32(dense)); err != nil {
			return fmt.Errorf("vectorstore: upserting fact vector: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FactsByDocument lists non-deleted facts for a document (spec §4.8, §6.1
// summary reporting).
func (s *Store) FactsByDocument(ctx context.Context, caseName, documentID string) ([]discovery.Fact, error) {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, document_id, category, content, chunk_ids, entities, date_references,
			confidence, source_snippet, page, bbox, is_edited, is_deleted, edit_history, review_status
		FROM facts WHERE document_id = ? AND is_deleted = 0
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []discovery.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		f.CaseName = discovery.CaseName(caseName)
		out = append(out, f)
	}
	return out, rows.Err()
}

// SimilarFacts finds candidate facts for dedup by dense similarity within
// the case (spec §4.8: cosine >= threshold gates a merge decision upstream
// in the facts package; this just returns ranked candidates).
func (s *Store) SimilarFacts(ctx context.Context, caseName string, dense []float32, topK int) ([]discovery.Fact, []float64, error) {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return nil, nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	rows, err := db.QueryContext(ctx, `
		SELECT f.id, f.document_id, f.category, f.content, f.chunk_ids, f.entities, f.date_references,
			f.confidence, f.source_snippet, f.page, f.bbox, f.is_edited, f.is_deleted, f.edit_history,
			f.review_status, v.distance
		FROM vec_facts v
		JOIN facts f ON f.rowid_internal = v.rowid_internal
		WHERE v.embedding MATCH ? AND k = ? AND f.is_deleted = 0
		ORDER BY v.distance
	`, serializeFloat32(dense), topK)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var facts []discovery.Fact
	var sims []float64
	for rows.Next() {
		var f discovery.Fact
		var chunkIDs, entities, dateRefs, bbox, editHistory string
		var distance float64
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Category, &f.Content, &chunkIDs, &entities, &dateRefs,
			&f.Confidence, &f.SourceSnippet, &f.Page, &bbox, &f.IsEdited, &f.IsDeleted, &editHistory,
			&f.ReviewStatus, &distance); err != nil {
			return nil, nil, err
		}
		if err := unmarshalFactJSON(&f, chunkIDs, entities, dateRefs, bbox, editHistory); err != nil {
			return nil, nil, err
		}
		f.CaseName = discovery.CaseName(caseName)
		facts = append(facts, f)
		sims = append(sims, 1-distance)
	}
	return facts, sims, rows.Err()
}

func scanFact(rows *sql.Rows) (discovery.Fact, error) {
	var f discovery.Fact
	var chunkIDs, entities, dateRefs, bbox, editHistory string
	if err := rows.Scan(&f.ID, &f.DocumentID, &f.Category, &f.Content, &chunkIDs, &entities, &dateRefs,
		&f.Confidence, &f.SourceSnippet, &f.Page, &bbox, &f.IsEdited, &f.IsDeleted, &editHistory, &f.ReviewStatus); err != nil {
		return f, err
	}
	if err := unmarshalFactJSON(&f, chunkIDs, entities, dateRefs, bbox, editHistory); err != nil {
		return f, err
	}
	return f, nil
}

func unmarshalFactJSON(f *discovery.Fact, chunkIDs, entities, dateRefs, bbox, editHistory string) error {
	if chunkIDs != "" {
		if err := json.Unmarshal([]byte(chunkIDs), &f.ChunkIDs); err != nil {
			return err
		}
	}
	if entities != "" && entities != "null" {
		if err := json.Unmarshal([]byte(entities), &f.Entities); err != nil {
			return err
		}
	}
	if dateRefs != "" && dateRefs != "null" {
		if err := json.Unmarshal([]byte(dateRefs), &f.DateReferences); err != nil {
			return err
		}
	}
	if bbox != "" && bbox != "null" {
		var b [4]float64
		if err := json.Unmarshal([]byte(bbox), &b); err != nil {
			return err
		}
		f.BBox = &b
	}
	if editHistory != "" && editHistory != "null" {
		if err := json.Unmarshal([]byte(editHistory), &f.EditHistory); err != nil {
			return err
		}
	}
	return nil
}

// MarkFactDeleted soft-deletes a fact, appending an edit-history entry
// (spec §4.8: edit/delete operations are append-only to editHistory).
func (s *Store) MarkFactDeleted(ctx context.Context, caseName, factID string, edit discovery.FactEdit) error {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return err
	}
	var editHistoryJSON string
	if err := db.QueryRowContext(ctx, `SELECT edit_history FROM facts WHERE id = ?`, factID).Scan(&editHistoryJSON); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	var history []discovery.FactEdit
	if editHistoryJSON != "" {
		if err := json.Unmarshal([]byte(editHistoryJSON), &history); err != nil {
			return err
		}
	}
	history = append(history, edit)
	updated, err := json.Marshal(history)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE facts SET is_deleted = 1, edit_history = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(updated), factID)
	return err
}
