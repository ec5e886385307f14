package facts

import (
	"context"
	"fmt"
	"time"

	"github.com/casegraph/discovery"
)

// EditStore is the persistence surface edit/delete operations need.
type EditStore interface {
	FactsByDocument(ctx context.Context, caseName, documentID string) ([]discovery.Fact, error)
	UpsertFact(ctx context.Context, f discovery.Fact, dense []float32) error
	MarkFactDeleted(ctx context.Context, caseName, factID string, edit discovery.FactEdit) error
}

// EditFact appends an edit to a fact's history, applies the edited content,
// and re-embeds it so the stored vector matches the new content (spec
// §4.8: "EditFact... appends to editHistory, re-embeds, and updates the
// vector"). embedder may be nil, in which case the existing vector is left
// in place — useful for callers that only need the content/history change
// applied (e.g. a correction that doesn't change the substantive meaning).
func EditFact(ctx context.Context, store EditStore, embedder Embedder, caseName, documentID, factID, newContent, userID, reason string, at time.Time) error {
	list, err := store.FactsByDocument(ctx, caseName, documentID)
	if err != nil {
		return fmt.Errorf("facts: loading facts for edit: %w", err)
	}
	for _, f := range list {
		if f.ID != factID {
			continue
		}
		f.EditHistory = append(f.EditHistory, discovery.FactEdit{
			At:       at,
			UserID:   userID,
			Reason:   reason,
			Action:   "edit",
			Previous: f.Content,
		})
		f.Content = newContent
		f.IsEdited = true

		var dense []float32
		if embedder != nil {
			vecs, err := embedder.Embed(ctx, []string{newContent})
			if err != nil {
				return fmt.Errorf("facts: re-embedding edited content: %w", err)
			}
			if len(vecs) == 1 {
				dense = vecs[0]
			}
		}
		return store.UpsertFact(ctx, f, dense)
	}
	return fmt.Errorf("facts: fact %s not found in document %s", factID, documentID)
}

// DeleteFact soft-deletes a fact (spec §4.8: deletion never removes the
// row, only marks it and records the edit).
func DeleteFact(ctx context.Context, store EditStore, caseName, factID, userID, reason string, at time.Time) error {
	return store.MarkFactDeleted(ctx, caseName, factID, discovery.FactEdit{
		At:     at,
		UserID: userID,
		Reason: reason,
		Action: "delete",
	})
}
