package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

// applyState folds the narrative state portion of a character delta into the
// node and stamps the reconciled chapter.
func (r *Reconciler) applyState(character *types.Character, chapter int, delta types.CharacterDelta) []string {
	var changes []string

	if delta.StateAfter != "" && delta.StateAfter != character.CurrentState {
		character.CurrentState = delta.StateAfter
		changes = append(changes, fmt.Sprintf("state: %s", delta.StateAfter))
	}
	if delta.PsychologicalChange != "" {
		character.CurrentState = types.AppendNote(character.CurrentState, chapter, delta.PsychologicalChange)
		changes = append(changes, fmt.Sprintf("psychology: %s", delta.PsychologicalChange))
	}

	if len(changes) > 0 {
		ch := chapter
		character.StateUpdatedChapter = &ch
	}
	if delta.KeyEvent != "" {
		changes = append(changes, fmt.Sprintf("event: %s", delta.KeyEvent))
	}
	return changes
}

func (r *Reconciler) applyOrganizationDelta(ctx context.Context, tx store.Tx, projectID string, chapter int, delta types.OrganizationDelta) Item {
	item := Item{Entity: delta.OrganizationName, Kind: "organization"}

	node, err := tx.GetCharacterByName(ctx, projectID, delta.OrganizationName)
	if errors.Is(err, store.ErrNotFound) {
		item.Outcome = OutcomeSkipped
		item.Reason = "organization not found"
		return item
	}
	if err != nil {
		item.Outcome = OutcomeFailed
		item.Reason = err.Error()
		return item
	}
	if !node.IsOrganization {
		item.Outcome = OutcomeSkipped
		item.Reason = "entity is not an organization"
		return item
	}

	if stale, recorded := staleFor(node, chapter); stale {
		item.Outcome = OutcomeSkipped
		item.Reason = fmt.Sprintf("stale delta: chapter %d already reconciled through %d", chapter, recorded)
		return item
	}

	organization, err := tx.GetOrganizationByCharacter(ctx, node.ID)
	if err != nil {
		item.Outcome = OutcomeFailed
		item.Reason = fmt.Sprintf("load organization record: %v", err)
		return item
	}

	if delta.IsDestroyed {
		changes, err := r.destroyOrganization(ctx, tx, node, organization, chapter)
		if err != nil {
			item.Outcome = OutcomeFailed
			item.Reason = err.Error()
			return item
		}
		item.Outcome = OutcomeApplied
		item.Changes = changes
		return item
	}

	var changes []string
	if delta.PowerChange != 0 {
		organization.PowerLevel = types.Clamp(organization.PowerLevel+delta.PowerChange, 0, 100)
		changes = append(changes, fmt.Sprintf("power: %+d -> %d", delta.PowerChange, organization.PowerLevel))
	}
	if delta.NewLocation != "" && delta.NewLocation != organization.Location {
		organization.Location = delta.NewLocation
		changes = append(changes, fmt.Sprintf("location: %s", delta.NewLocation))
	}
	if delta.NewPurpose != "" && delta.NewPurpose != node.OrganizationPurpose {
		node.OrganizationPurpose = delta.NewPurpose
		changes = append(changes, fmt.Sprintf("purpose: %s", delta.NewPurpose))
	}
	if delta.StatusDescription != "" {
		node.CurrentState = delta.StatusDescription
		changes = append(changes, fmt.Sprintf("standing: %s", delta.StatusDescription))
	}
	if len(changes) > 0 {
		ch := chapter
		node.StateUpdatedChapter = &ch
		if err := tx.UpdateOrganization(ctx, organization); err != nil {
			item.Outcome = OutcomeFailed
			item.Reason = err.Error()
			return item
		}
		if err := tx.UpdateCharacter(ctx, node); err != nil {
			item.Outcome = OutcomeFailed
			item.Reason = err.Error()
			return item
		}
	}
	if delta.KeyEvent != "" {
		changes = append(changes, fmt.Sprintf("event: %s", delta.KeyEvent))
	}

	item.Outcome = OutcomeApplied
	item.Changes = changes
	return item
}
