package reconcile

import (
	"context"
	"fmt"

	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

// applyStatusChange records a terminal survival transition on the character
// and cascades it through active relationships and memberships. The current
// state is replaced with the terminal marker so later prompts see the exit,
// not the last in-story state.
func (r *Reconciler) applyStatusChange(ctx context.Context, tx store.Tx, projectID string, character *types.Character, chapter int, status types.CharacterStatus) ([]string, error) {
	previous := character.Status
	character.Status = status
	ch := chapter
	character.StatusChangedChapter = &ch
	character.CurrentState = statusNote(status)
	character.StateUpdatedChapter = &ch

	changes := []string{fmt.Sprintf("status: %s -> %s", previous, status)}

	ended, err := r.endActiveRelationships(ctx, tx, projectID, character.ID, chapter)
	if err != nil {
		return nil, err
	}
	if ended > 0 {
		changes = append(changes, fmt.Sprintf("ended %d relationships", ended))
	}

	memberStatus := types.MemberRetired
	if status == types.StatusDeceased {
		memberStatus = types.MemberDeceased
	}
	closed, err := r.closeActiveMemberships(ctx, tx, character.ID, chapter, memberStatus, statusNote(status))
	if err != nil {
		return nil, err
	}
	if closed > 0 {
		changes = append(changes, fmt.Sprintf("closed %d memberships", closed))
	}

	r.logger.Info("terminal status cascade applied",
		"character", character.Name, "status", status, "chapter", chapter,
		"relationships_ended", ended, "memberships_closed", closed)
	return changes, nil
}

func (r *Reconciler) endActiveRelationships(ctx context.Context, tx store.Tx, projectID, characterID string, chapter int) (int, error) {
	relationships, err := tx.ListActiveRelationships(ctx, projectID, characterID)
	if err != nil {
		return 0, fmt.Errorf("list active relationships: %w", err)
	}
	for _, rel := range relationships {
		rel.Status = types.RelationshipPast
		rel.EndedAt = types.ChapterLabel(chapter)
		if err := tx.UpdateRelationship(ctx, rel); err != nil {
			return 0, fmt.Errorf("end relationship %s: %w", rel.ID, err)
		}
	}
	return len(relationships), nil
}

func (r *Reconciler) closeActiveMemberships(ctx context.Context, tx store.Tx, characterID string, chapter int, status types.MembershipStatus, note string) (int, error) {
	memberships, err := tx.ListActiveMemberships(ctx, characterID)
	if err != nil {
		return 0, fmt.Errorf("list active memberships: %w", err)
	}
	for _, membership := range memberships {
		membership.Status = status
		membership.LeftAt = types.ChapterLabel(chapter)
		if note != "" {
			membership.Notes = types.AppendNote(membership.Notes, chapter, note)
		}
		if err := tx.UpdateMembership(ctx, membership); err != nil {
			return 0, fmt.Errorf("close membership %s: %w", membership.ID, err)
		}
	}
	return len(memberships), nil
}

// destroyOrganization marks the organization destroyed, zeroes its power and
// retires every active member.
func (r *Reconciler) destroyOrganization(ctx context.Context, tx store.Tx, node *types.Character, organization *types.Organization, chapter int) ([]string, error) {
	node.Status = types.StatusDestroyed
	ch := chapter
	node.StatusChangedChapter = &ch
	organization.PowerLevel = 0

	if err := tx.UpdateCharacter(ctx, node); err != nil {
		return nil, fmt.Errorf("mark organization destroyed: %w", err)
	}
	if err := tx.UpdateOrganization(ctx, organization); err != nil {
		return nil, fmt.Errorf("zero organization power: %w", err)
	}

	members, err := tx.ListActiveMembers(ctx, organization.ID)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	for _, membership := range members {
		membership.Status = types.MemberRetired
		membership.LeftAt = types.ChapterLabel(chapter)
		membership.Notes = types.AppendNote(membership.Notes, chapter, "组织覆灭")
		if err := tx.UpdateMembership(ctx, membership); err != nil {
			return nil, fmt.Errorf("retire member %s: %w", membership.CharacterID, err)
		}
	}

	r.logger.Info("organization destroyed",
		"organization", node.Name, "chapter", chapter, "members_retired", len(members))

	changes := []string{"destroyed", "power: 0"}
	if len(members) > 0 {
		changes = append(changes, fmt.Sprintf("retired %d members", len(members)))
	}
	return changes, nil
}

func statusNote(status types.CharacterStatus) string {
	switch status {
	case types.StatusDeceased:
		return "角色死亡"
	case types.StatusMissing:
		return "角色失踪"
	case types.StatusRetired:
		return "角色退场"
	}
	return ""
}
