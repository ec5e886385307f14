package vectorstore

import (
	"context"
	"encoding/json"
)

// UpsertAuxRecord populates one of the denormalized, query-friendly
// per-document-type summaries (CollDepositions, CollExhibits) keyed by
// document id, or appends a dated entry to CollTimeline keyed by its own
// id. These are populated opportunistically by orchestrator.recordAuxSummary
// once a segment's documentType is known (spec §4.6: "<case>_depositions,
// <case>_exhibits, <case>_timeline").
func (s *Store) UpsertAuxRecord(ctx context.Context, caseName, collection, id string, payload any) error {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	table, keyColumn, err := auxTable(collection)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO `+table+` (`+keyColumn+`, payload) VALUES (?, ?)
		ON CONFLICT(`+keyColumn+`) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP
	`, id, string(body))
	return err
}

func auxTable(collection string) (table, keyColumn string, err error) {
	switch collection {
	case CollDepositions:
		return "aux_depositions", "document_id", nil
	case CollExhibits:
		return "aux_exhibits", "document_id", nil
	case CollTimeline:
		return "aux_timeline", "id", nil
	default:
		return "", "", ErrCrossCaseAccess
	}
}

// ListAuxRecords returns every raw payload in one aux collection, newest
// first.
func (s *Store) ListAuxRecords(ctx context.Context, caseName, collection string) ([]json.RawMessage, error) {
	db, err := s.dbForCase(caseName)
	if err != nil {
		return nil, err
	}
	table, _, err := auxTable(collection)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT payload FROM `+table+` ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}
