package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/storyforge/go-storyforge/pkg/lexicon"
	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

// applyMembershipChange folds one organization-change event into the
// membership edge between the character and the named organization.
func (r *Reconciler) applyMembershipChange(ctx context.Context, tx store.Tx, projectID string, character *types.Character, chapter int, change types.MembershipChange) (string, error) {
	if change.OrganizationName == "" {
		return "", nil
	}

	node, err := tx.GetCharacterByName(ctx, projectID, change.OrganizationName)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !node.IsOrganization) {
		r.logger.Warn("organization unknown, skipping membership change",
			"character", character.Name, "organization", change.OrganizationName, "chapter", chapter)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up organization %q: %w", change.OrganizationName, err)
	}
	organization, err := tx.GetOrganizationByCharacter(ctx, node.ID)
	if err != nil {
		return "", fmt.Errorf("load organization record %q: %w", change.OrganizationName, err)
	}

	loyaltyDelta := lexicon.LoyaltyDelta(change.LoyaltyChange)

	membership, err := tx.FindMembership(ctx, organization.ID, character.ID)
	if errors.Is(err, store.ErrNotFound) {
		if change.ChangeType != types.ChangeJoined {
			r.logger.Warn("membership change without membership, skipping",
				"character", character.Name, "organization", change.OrganizationName,
				"change_type", change.ChangeType)
			return "", nil
		}
		membership = &types.Membership{
			OrganizationID: organization.ID,
			CharacterID:    character.ID,
			Position:       change.NewPosition,
			Loyalty:        types.Clamp(50+loyaltyDelta, 0, 100),
			Status:         types.MemberActive,
			JoinedAt:       types.ChapterLabel(chapter),
			Notes:          types.AppendNote("", chapter, noteLine(change)),
			Source:         types.SourceAnalysis,
		}
		if err := tx.CreateMembership(ctx, membership); err != nil {
			return "", fmt.Errorf("create membership %q in %q: %w", character.Name, change.OrganizationName, err)
		}
		organization.MemberCount++
		if err := tx.UpdateOrganization(ctx, organization); err != nil {
			return "", fmt.Errorf("update member count for %q: %w", change.OrganizationName, err)
		}
		return fmt.Sprintf("joined %s at loyalty %d", change.OrganizationName, membership.Loyalty), nil
	}
	if err != nil {
		return "", fmt.Errorf("look up membership: %w", err)
	}

	// Every branch below only acts on a row in the matching status: exits
	// and adjustments need an active membership, reactivation needs an
	// inactive one. Anything else is an extractor echo and is dropped.
	active := membership.Status == types.MemberActive

	line := ""
	switch change.ChangeType {
	case types.ChangeJoined:
		if active {
			return "", nil
		}
		membership.Status = types.MemberActive
		membership.JoinedAt = types.ChapterLabel(chapter)
		membership.LeftAt = ""
		if change.NewPosition != "" {
			membership.Position = change.NewPosition
		}
		line = fmt.Sprintf("rejoined %s", change.OrganizationName)

	case types.ChangeLeft:
		if !active {
			return "", nil
		}
		membership.Status = types.MemberRetired
		membership.LeftAt = types.ChapterLabel(chapter)
		line = fmt.Sprintf("left %s", change.OrganizationName)

	case types.ChangeExpelled, types.ChangeBetrayed:
		if !active {
			return "", nil
		}
		membership.Status = types.MemberExpelled
		membership.LeftAt = types.ChapterLabel(chapter)
		line = fmt.Sprintf("expelled from %s", change.OrganizationName)

	case types.ChangePromoted:
		if !active {
			return "", nil
		}
		membership.Rank++
		if change.NewPosition != "" {
			membership.Position = change.NewPosition
		}
		if loyaltyDelta == 0 {
			loyaltyDelta = 5
		}
		line = fmt.Sprintf("promoted in %s to rank %d", change.OrganizationName, membership.Rank)

	case types.ChangeDemoted:
		if !active {
			return "", nil
		}
		if membership.Rank > 0 {
			membership.Rank--
		}
		if change.NewPosition != "" {
			membership.Position = change.NewPosition
		}
		if loyaltyDelta == 0 {
			loyaltyDelta = -5
		}
		line = fmt.Sprintf("demoted in %s to rank %d", change.OrganizationName, membership.Rank)

	default:
		if !active {
			return "", nil
		}
		line = fmt.Sprintf("membership %s adjusted", change.OrganizationName)
	}

	if loyaltyDelta != 0 {
		membership.Loyalty = types.Clamp(membership.Loyalty+loyaltyDelta, 0, 100)
	}
	membership.Notes = types.AppendNote(membership.Notes, chapter, noteLine(change))
	if err := tx.UpdateMembership(ctx, membership); err != nil {
		return "", fmt.Errorf("update membership %q in %q: %w", character.Name, change.OrganizationName, err)
	}
	return line, nil
}

// noteLine formats the chapter log entry for a membership event.
func noteLine(change types.MembershipChange) string {
	label := string(change.ChangeType)
	if label == "" {
		label = "adjusted"
	}
	if change.Description == "" {
		return label
	}
	return label + ": " + change.Description
}
