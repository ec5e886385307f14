package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/casegraph/discovery"
)

// UpsertDocument inserts or updates a document's registry row (spec §3,
// §4.7). metadataHash is the registry's secondary "same file, new
// production" detection key (spec §4.7); it has no field on Document
// itself and is tracked here purely for registry lookups.
func (s *Store) UpsertDocument(ctx context.Context, doc discovery.Document, metadataHash string) error {
	db, err := s.dbForCase(string(doc.CaseName))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (id, case_name, content_hash, metadata_hash, status)
		VALUES (?, ?, ?, ?, 'ingested')
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			metadata_hash = excluded.metadata_hash,
			updated_at = CURRENT_TIMESTAMP
	`, doc.ID, string(doc.CaseName), doc.ContentHash, metadataHash)
	if err != nil {
		return fmt.Errorf("vectorstore: upserting document: %w", err)
	}
	return nil
}

// DocumentLookup is the minimal registry projection needed for
// content/metadata-hash duplicate detection.
type DocumentLookup struct {
	DocumentID   string
	ContentHash  string
	MetadataHash string
}

// FindDocumentByContentHash looks up a prior document with matching content
// hash within the case, for duplicate detection (spec §4.7).
func (s *Store) FindDocumentByContentHash(ctx context.Context, caseName, contentHash string) (*DocumentLookup, error) {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT id, content_hash, metadata_hash
		FROM documents WHERE content_hash = ? ORDER BY created_at ASC LIMIT 1
	`, contentHash)

	var d DocumentLookup
	if err := row.Scan(&d.DocumentID, &d.ContentHash, &d.MetadataHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// FindDocumentByMetadataHash looks up a prior document matching the
// secondary metadata hash, for "same file, new production" detection
// (spec §4.7 — exposed for reporting, never used to dedupe).
func (s *Store) FindDocumentByMetadataHash(ctx context.Context, caseName, metadataHash string) (*DocumentLookup, error) {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT id, content_hash, metadata_hash
		FROM documents WHERE metadata_hash = ? ORDER BY created_at ASC LIMIT 1
	`, metadataHash)

	var d DocumentLookup
	if err := row.Scan(&d.DocumentID, &d.ContentHash, &d.MetadataHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// DeleteDocument removes a document's chunks, token entries, facts, aux
// records, and registry row, returning the number of chunks removed.
func (s *Store) DeleteDocument(ctx context.Context, caseName, documentID string) (int, error) {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT rowid_internal FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return 0, err
	}
	var rowids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		rowids = append(rowids, id)
	}
	rows.Close()

	for _, id := range rowids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE rowid_internal = ?`, id); err != nil {
			return 0, err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return 0, err
	}
	for _, stmt := range []string{
		`DELETE FROM facts WHERE document_id = ?`,
		`DELETE FROM aux_depositions WHERE document_id = ?`,
		`DELETE FROM aux_exhibits WHERE document_id = ?`,
		`DELETE FROM aux_timeline WHERE document_id = ?`,
		`DELETE FROM documents WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, documentID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
