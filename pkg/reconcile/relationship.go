package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/storyforge/go-storyforge/pkg/lexicon"
	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

// applyRelationshipChange adjusts or creates the edge between the character
// and the named target. The change text is scored against the intimacy
// lexicon; a new edge starts from the neutral baseline of 50.
func (r *Reconciler) applyRelationshipChange(ctx context.Context, tx store.Tx, projectID string, character *types.Character, chapter int, targetName string, change types.RelationshipChange) (string, error) {
	if targetName == "" || targetName == character.Name || change.Change == "" {
		return "", nil
	}

	target, err := tx.GetCharacterByName(ctx, projectID, targetName)
	if errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("relationship target unknown, skipping",
			"character", character.Name, "target", targetName, "chapter", chapter)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up relationship target %q: %w", targetName, err)
	}

	delta := lexicon.IntimacyDelta(change.Change)

	rel, err := tx.FindRelationship(ctx, projectID, character.ID, target.ID)
	switch {
	case err == nil:
		rel.RelationshipName = change.Change
		rel.Description = types.AppendNote(rel.Description, chapter, change.Change)
		if delta != 0 {
			rel.IntimacyLevel = types.Clamp(rel.IntimacyLevel+delta, -100, 100)
		}
		if err := tx.UpdateRelationship(ctx, rel); err != nil {
			return "", fmt.Errorf("update relationship %q -> %q: %w", character.Name, targetName, err)
		}
		return fmt.Sprintf("relationship %s: %+d -> %d", targetName, delta, rel.IntimacyLevel), nil

	case errors.Is(err, store.ErrNotFound):
		rel = &types.Relationship{
			ProjectID:        projectID,
			FromCharacterID:  character.ID,
			ToCharacterID:    target.ID,
			RelationshipName: change.Change,
			IntimacyLevel:    types.Clamp(50+delta, -100, 100),
			Status:           types.RelationshipActive,
			Description:      types.AppendNote("", chapter, change.Change),
			Source:           types.SourceAnalysis,
		}
		if err := tx.CreateRelationship(ctx, rel); err != nil {
			return "", fmt.Errorf("create relationship %q -> %q: %w", character.Name, targetName, err)
		}
		return fmt.Sprintf("relationship %s: new at %d", targetName, rel.IntimacyLevel), nil

	default:
		return "", fmt.Errorf("look up relationship edge: %w", err)
	}
}
