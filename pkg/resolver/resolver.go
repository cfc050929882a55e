// Package resolver detects entity mentions that have no persisted record yet
// and materializes them: characters become graph nodes with auto-sourced
// relationship edges, organizations become node pairs with initial
// memberships. A failed elaboration never aborts the rest of the batch; only
// a write failure that would strand half of an organization pair does.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storyforge/go-storyforge/pkg/elaborate"
	"github.com/storyforge/go-storyforge/pkg/mentions"
	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

// errPairIncomplete marks a failure that left an organization node staged
// without its organization record.
var errPairIncomplete = errors.New("organization pair incomplete")

// Outcome classifies how one mentioned entity was handled.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeFailed  Outcome = "failed"
)

// Item is the per-entity result of a resolution run.
type Item struct {
	Name    string            `json:"name"`
	Kind    types.MentionKind `json:"kind"`
	Outcome Outcome           `json:"outcome"`
	Error   string            `json:"error,omitempty"`
}

// Report summarizes one resolution run.
type Report struct {
	// Missing lists every mentioned name that had no persisted record.
	Missing []string `json:"missing"`
	// Created lists the names successfully materialized.
	Created []string `json:"created"`
	Items   []Item   `json:"items"`
}

// CreatedCount returns the number of entities materialized in this run.
func (r *Report) CreatedCount() int { return len(r.Created) }

func (r *Report) add(name string, kind types.MentionKind, err error) {
	item := Item{Name: name, Kind: kind, Outcome: OutcomeCreated}
	if err != nil {
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
	} else {
		r.Created = append(r.Created, name)
	}
	r.Missing = append(r.Missing, name)
	r.Items = append(r.Items, item)
}

// Resolver materializes missing entities inside a caller-owned transaction.
type Resolver struct {
	elaborator *elaborate.Elaborator
	logger     *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(elaborator *elaborate.Elaborator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{elaborator: elaborator, logger: logger}
}

// Resolve compares the mention set against persisted entities and creates
// whatever is missing. Character mentions are matched against every persisted
// name, organization mentions against organization names only. Writes are
// flushed, never committed; the transaction belongs to the caller.
func (r *Resolver) Resolve(ctx context.Context, tx store.Tx, projectID string, set *mentions.Set) (*Report, error) {
	project, err := tx.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}

	characters, err := tx.ListCharacters(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}

	allNames := make(map[string]bool, len(characters))
	orgNames := make(map[string]bool)
	var existingNames, existingOrgs []string
	for _, c := range characters {
		allNames[c.Name] = true
		existingNames = append(existingNames, c.Name)
		if c.IsOrganization {
			orgNames[c.Name] = true
			existingOrgs = append(existingOrgs, c.Name)
		}
	}

	report := &Report{}

	for _, mention := range set.OfKind(types.KindCharacter) {
		if allNames[mention.Name] {
			continue
		}
		err := r.createCharacter(ctx, tx, project, mention, existingNames)
		if err != nil {
			r.logger.Warn("failed to materialize character, skipping",
				"name", mention.Name, "error", err)
		} else {
			allNames[mention.Name] = true
			existingNames = append(existingNames, mention.Name)
		}
		report.add(mention.Name, types.KindCharacter, err)
	}

	for _, mention := range set.OfKind(types.KindOrganization) {
		if orgNames[mention.Name] {
			continue
		}
		err := r.createOrganization(ctx, tx, project, mention, existingNames, existingOrgs)
		if errors.Is(err, errPairIncomplete) {
			return nil, fmt.Errorf("materialize organization %q: %w", mention.Name, err)
		}
		if err != nil {
			r.logger.Warn("failed to materialize organization, skipping",
				"name", mention.Name, "error", err)
		} else {
			allNames[mention.Name] = true
			orgNames[mention.Name] = true
			existingNames = append(existingNames, mention.Name)
			existingOrgs = append(existingOrgs, mention.Name)
		}
		report.add(mention.Name, types.KindOrganization, err)
	}

	if err := tx.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush resolved entities: %w", err)
	}

	r.logger.Info("mention resolution finished",
		"project_id", projectID,
		"missing", len(report.Missing),
		"created", len(report.Created))
	return report, nil
}

func (r *Resolver) createCharacter(ctx context.Context, tx store.Tx, project *types.Project, mention *mentions.Mention, existingNames []string) error {
	profile, err := r.elaborator.Character(ctx, elaborate.Request{
		Project:       project,
		Name:          mention.Name,
		Contexts:      mention.Contexts,
		ExistingNames: existingNames,
	})
	if err != nil {
		return err
	}

	character := &types.Character{
		ProjectID:   project.ID,
		Name:        profile.Name,
		RoleKind:    roleKind(profile.RoleType),
		Age:         profile.Age,
		Gender:      profile.Gender,
		Personality: profile.Personality,
		Background:  profile.Background,
		Appearance:  profile.Appearance,
		Status:      types.StatusActive,
	}
	if err := tx.CreateCharacter(ctx, character); err != nil {
		return fmt.Errorf("create character %q: %w", profile.Name, err)
	}

	for _, seed := range profile.Relationships {
		if seed.TargetCharacterName == "" || seed.TargetCharacterName == character.Name {
			continue
		}
		target, err := tx.GetCharacterByName(ctx, project.ID, seed.TargetCharacterName)
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Debug("relationship target does not exist, skipping",
				"character", character.Name, "target", seed.TargetCharacterName)
			continue
		}
		if err != nil {
			return fmt.Errorf("look up relationship target %q: %w", seed.TargetCharacterName, err)
		}
		if _, err := tx.FindRelationship(ctx, project.ID, character.ID, target.ID); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("look up relationship edge: %w", err)
		}
		rel := &types.Relationship{
			ProjectID:        project.ID,
			FromCharacterID:  character.ID,
			ToCharacterID:    target.ID,
			RelationshipName: seed.RelationshipType,
			IntimacyLevel:    types.Clamp(seed.IntimacyLevel, -100, 100),
			Status:           types.RelationshipActive,
			Description:      seed.Description,
			Source:           types.SourceAuto,
		}
		if err := tx.CreateRelationship(ctx, rel); err != nil {
			return fmt.Errorf("create relationship %q -> %q: %w", character.Name, target.Name, err)
		}
	}
	return nil
}

func (r *Resolver) createOrganization(ctx context.Context, tx store.Tx, project *types.Project, mention *mentions.Mention, existingNames, existingOrgs []string) error {
	profile, err := r.elaborator.Organization(ctx, elaborate.Request{
		Project:               project,
		Name:                  mention.Name,
		Contexts:              mention.Contexts,
		ExistingNames:         existingNames,
		ExistingOrganizations: existingOrgs,
	})
	if err != nil {
		return err
	}

	character := &types.Character{
		ProjectID:           project.ID,
		Name:                profile.Name,
		IsOrganization:      true,
		Personality:         profile.Personality,
		Background:          profile.Background,
		Appearance:          profile.Appearance,
		OrganizationType:    profile.OrganizationType,
		OrganizationPurpose: profile.OrganizationPurpose,
		Status:              types.StatusActive,
	}
	if err := tx.CreateCharacter(ctx, character); err != nil {
		return fmt.Errorf("create organization node %q: %w", profile.Name, err)
	}

	organization := &types.Organization{
		CharacterID: character.ID,
		ProjectID:   project.ID,
		PowerLevel:  profile.PowerLevel,
		Location:    profile.Location,
		Motto:       profile.Motto,
	}
	if err := tx.CreateOrganization(ctx, organization); err != nil {
		// The node is already staged; committing it without its record
		// would leave a half-pair, so the whole batch must roll back.
		return fmt.Errorf("create organization record %q: %v: %w", profile.Name, err, errPairIncomplete)
	}

	for _, seed := range profile.InitialMembers {
		member, err := tx.GetCharacterByName(ctx, project.ID, seed.CharacterName)
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Debug("initial member does not exist, skipping",
				"organization", character.Name, "member", seed.CharacterName)
			continue
		}
		if err != nil {
			return fmt.Errorf("look up initial member %q: %w", seed.CharacterName, err)
		}
		if member.IsOrganization {
			continue
		}
		if _, err := tx.FindMembership(ctx, organization.ID, member.ID); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("look up membership: %w", err)
		}
		membership := &types.Membership{
			OrganizationID: organization.ID,
			CharacterID:    member.ID,
			Position:       seed.Position,
			Rank:           seed.Rank,
			Loyalty:        types.Clamp(seed.Loyalty, 0, 100),
			Status:         types.MemberActive,
			Source:         types.SourceAuto,
		}
		if err := tx.CreateMembership(ctx, membership); err != nil {
			return fmt.Errorf("create membership %q in %q: %w", member.Name, character.Name, err)
		}
		organization.MemberCount++
	}

	if organization.MemberCount > 0 {
		if err := tx.UpdateOrganization(ctx, organization); err != nil {
			return fmt.Errorf("update member count for %q: %w", character.Name, err)
		}
	}
	return nil
}

func roleKind(roleType string) types.RoleKind {
	switch roleType {
	case string(types.RoleProtagonist):
		return types.RoleProtagonist
	case string(types.RoleAntagonist):
		return types.RoleAntagonist
	default:
		return types.RoleSupporting
	}
}
