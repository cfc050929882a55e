// Package elaborate turns bare entity names mentioned in outline text into
// full character and organization profiles via the language model.
package elaborate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storyforge/go-storyforge/pkg/llm"
	"github.com/storyforge/go-storyforge/pkg/prompts"
	"github.com/storyforge/go-storyforge/pkg/types"
)

const maxGenerateRetries = 2

// Request carries everything the elaborator needs to invent one entity.
type Request struct {
	Project *types.Project

	// Name is the entity name exactly as mentioned in the outline. The
	// generated profile always keeps this name regardless of what the
	// model returns.
	Name string

	// Contexts are outline snippets where the name appears.
	Contexts []string

	// ExistingNames lists all persisted character and organization names,
	// so the model can reference them instead of inventing duplicates.
	ExistingNames []string

	// ExistingOrganizations lists persisted organization names only.
	ExistingOrganizations []string
}

// RelationshipSeed is a relationship the model proposes between the new
// character and an existing one.
type RelationshipSeed struct {
	TargetCharacterName string `json:"target_character_name"`
	RelationshipType    string `json:"relationship_type"`
	IntimacyLevel       int    `json:"intimacy_level"`
	Description         string `json:"description"`
}

// CharacterProfile is the generated profile for a new character.
type CharacterProfile struct {
	Name          string             `json:"name"`
	Age           string             `json:"age"`
	Gender        string             `json:"gender"`
	RoleType      string             `json:"role_type"`
	Personality   string             `json:"personality"`
	Background    string             `json:"background"`
	Appearance    string             `json:"appearance"`
	Relationships []RelationshipSeed `json:"relationships,omitempty"`
}

// MemberSeed is an initial membership the model proposes for a new
// organization, referencing an existing character by name.
type MemberSeed struct {
	CharacterName string `json:"character_name"`
	Position      string `json:"position"`
	Rank          int    `json:"rank"`
	Loyalty       int    `json:"loyalty"`
}

// OrganizationProfile is the generated profile for a new organization.
type OrganizationProfile struct {
	Name                string       `json:"name"`
	OrganizationType    string       `json:"organization_type"`
	OrganizationPurpose string       `json:"organization_purpose"`
	Personality         string       `json:"personality"`
	Background          string       `json:"background"`
	Appearance          string       `json:"appearance"`
	PowerLevel          int          `json:"power_level"`
	Location            string       `json:"location"`
	Motto               string       `json:"motto"`
	InitialMembers      []MemberSeed `json:"initial_members,omitempty"`
}

// Elaborator generates entity profiles through the prompt library.
type Elaborator struct {
	llm     llm.Client
	prompts prompts.Library
	logger  *slog.Logger
}

// NewElaborator creates an Elaborator.
func NewElaborator(client llm.Client, library prompts.Library, logger *slog.Logger) *Elaborator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Elaborator{llm: client, prompts: library, logger: logger}
}

// Character generates a full profile for a newly mentioned character.
func (e *Elaborator) Character(ctx context.Context, req Request) (*CharacterProfile, error) {
	messages, err := e.prompts.ElaborateCharacter().Character().Call(map[string]interface{}{
		"project_profile":   req.Project,
		"existing_entities": req.ExistingNames,
		"character_specification": map[string]interface{}{
			"name":     req.Name,
			"contexts": req.Contexts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build character prompt: %w", err)
	}

	var profile CharacterProfile
	if err := llm.GenerateJSON(ctx, e.llm, messages, &profile, maxGenerateRetries); err != nil {
		return nil, fmt.Errorf("elaborate character %q: %w", req.Name, err)
	}

	if profile.Name != req.Name {
		e.logger.Debug("overriding generated character name",
			"generated", profile.Name, "mentioned", req.Name)
		profile.Name = req.Name
	}
	return &profile, nil
}

// Organization generates a full profile for a newly mentioned organization.
func (e *Elaborator) Organization(ctx context.Context, req Request) (*OrganizationProfile, error) {
	messages, err := e.prompts.ElaborateOrganization().Organization().Call(map[string]interface{}{
		"project_profile":        req.Project,
		"existing_entities":      req.ExistingNames,
		"existing_organizations": req.ExistingOrganizations,
		"organization_specification": map[string]interface{}{
			"name":     req.Name,
			"contexts": req.Contexts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build organization prompt: %w", err)
	}

	// Models occasionally omit power_level; a midpoint default keeps a
	// missing value from reading as powerless.
	profile := OrganizationProfile{PowerLevel: 50}
	if err := llm.GenerateJSON(ctx, e.llm, messages, &profile, maxGenerateRetries); err != nil {
		return nil, fmt.Errorf("elaborate organization %q: %w", req.Name, err)
	}

	profile.PowerLevel = types.Clamp(profile.PowerLevel, 0, 100)
	if profile.Name != req.Name {
		e.logger.Debug("overriding generated organization name",
			"generated", profile.Name, "mentioned", req.Name)
		profile.Name = req.Name
	}
	return &profile, nil
}
