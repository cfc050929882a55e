// Package reconcile folds a chapter's extracted change records back into the
// persisted entity graph: character states, survival statuses, relationship
// edges, memberships, and organization standing. One bad delta never aborts
// the rest of the batch.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

// Reconciler applies analysis batches inside a caller-owned transaction.
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// Apply folds every delta of the batch into the graph. Writes are flushed,
// never committed; the transaction belongs to the caller.
func (r *Reconciler) Apply(ctx context.Context, tx store.Tx, projectID string, batch types.AnalysisBatch) (*Report, error) {
	report := &Report{ChapterNumber: batch.ChapterNumber}

	for _, delta := range batch.CharacterDeltas {
		item := r.applyCharacterDelta(ctx, tx, projectID, batch.ChapterNumber, delta)
		if item.Outcome == OutcomeFailed {
			r.logger.Warn("character delta failed, skipping",
				"character", delta.CharacterName, "chapter", batch.ChapterNumber, "reason", item.Reason)
		}
		report.record(item)
	}

	for _, delta := range batch.OrganizationDeltas {
		item := r.applyOrganizationDelta(ctx, tx, projectID, batch.ChapterNumber, delta)
		if item.Outcome == OutcomeFailed {
			r.logger.Warn("organization delta failed, skipping",
				"organization", delta.OrganizationName, "chapter", batch.ChapterNumber, "reason", item.Reason)
		}
		report.record(item)
	}

	if err := tx.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush reconciled changes: %w", err)
	}

	r.logger.Info("chapter reconciliation finished",
		"project_id", projectID,
		"chapter", batch.ChapterNumber,
		"applied", report.Applied,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}

func (r *Reconciler) applyCharacterDelta(ctx context.Context, tx store.Tx, projectID string, chapter int, delta types.CharacterDelta) Item {
	item := Item{Entity: delta.CharacterName, Kind: "character"}

	character, err := tx.GetCharacterByName(ctx, projectID, delta.CharacterName)
	if errors.Is(err, store.ErrNotFound) {
		item.Outcome = OutcomeSkipped
		item.Reason = "character not found"
		return item
	}
	if err != nil {
		item.Outcome = OutcomeFailed
		item.Reason = err.Error()
		return item
	}

	if stale, recorded := staleFor(character, chapter); stale {
		item.Outcome = OutcomeSkipped
		item.Reason = fmt.Sprintf("stale delta: chapter %d already reconciled through %d", chapter, recorded)
		return item
	}

	// A terminal transition supersedes everything else in the delta: the
	// cascade fires and the state, relationship and membership changes the
	// chapter also reported are discarded. Non-terminal survival values
	// (the extractor sometimes echoes "active") are ignored.
	if delta.SurvivalStatus.Terminal() && delta.SurvivalStatus != character.Status {
		changes, err := r.applyStatusChange(ctx, tx, projectID, character, chapter, delta.SurvivalStatus)
		if err != nil {
			item.Outcome = OutcomeFailed
			item.Reason = err.Error()
			return item
		}
		if err := tx.UpdateCharacter(ctx, character); err != nil {
			item.Outcome = OutcomeFailed
			item.Reason = err.Error()
			return item
		}
		item.Outcome = OutcomeApplied
		item.Changes = changes
		return item
	}

	changes := r.applyState(character, chapter, delta)

	if err := tx.UpdateCharacter(ctx, character); err != nil {
		item.Outcome = OutcomeFailed
		item.Reason = err.Error()
		return item
	}

	for target, change := range delta.RelationshipChanges {
		line, err := r.applyRelationshipChange(ctx, tx, projectID, character, chapter, target, change)
		if err != nil {
			item.Outcome = OutcomeFailed
			item.Reason = err.Error()
			return item
		}
		if line != "" {
			changes = append(changes, line)
		}
	}

	for _, change := range delta.OrganizationChanges {
		line, err := r.applyMembershipChange(ctx, tx, projectID, character, chapter, change)
		if err != nil {
			item.Outcome = OutcomeFailed
			item.Reason = err.Error()
			return item
		}
		if line != "" {
			changes = append(changes, line)
		}
	}

	item.Outcome = OutcomeApplied
	item.Changes = changes
	return item
}

// staleFor reports whether the chapter predates the character's most recent
// reconciled chapter. Re-applying the same chapter is allowed.
func staleFor(character *types.Character, chapter int) (bool, int) {
	recorded := 0
	if character.StateUpdatedChapter != nil && *character.StateUpdatedChapter > recorded {
		recorded = *character.StateUpdatedChapter
	}
	if character.StatusChangedChapter != nil && *character.StatusChangedChapter > recorded {
		recorded = *character.StatusChangedChapter
	}
	return chapter < recorded, recorded
}
