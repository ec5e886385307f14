package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/casegraph/discovery"
)

// GetDuplicateRecord returns the DuplicateRecord for a contentHash within a
// case, or nil if none exists.
func (s *Store) GetDuplicateRecord(ctx context.Context, caseName, contentHash string) (*discovery.DuplicateRecord, error) {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return nil, err
	}
	var rec discovery.DuplicateRecord
	var locations string
	err = db.QueryRowContext(ctx, `
		SELECT content_hash, primary_document_id, additional_locations FROM duplicate_records WHERE content_hash = ?
	`, contentHash).Scan(&rec.ContentHash, &rec.PrimaryDocumentID, &locations)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if locations != "" {
		if err := json.Unmarshal([]byte(locations), &rec.AdditionalLocations); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// PutDuplicateRecord creates or overwrites a DuplicateRecord row.
func (s *Store) PutDuplicateRecord(ctx context.Context, caseName string, rec discovery.DuplicateRecord) error {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return err
	}
	locations, err := json.Marshal(rec.AdditionalLocations)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO duplicate_records (content_hash, primary_document_id, additional_locations)
		VALUES (?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			primary_document_id = excluded.primary_document_id,
			additional_locations = excluded.additional_locations
	`, rec.ContentHash, rec.PrimaryDocumentID, string(locations))
	return err
}
