package prompts

import (
	"fmt"

	"github.com/storyforge/go-storyforge/pkg/llm"
)

// ElaborateCharacterPrompt defines the interface for character elaboration
// prompts.
type ElaborateCharacterPrompt interface {
	Character() PromptVersion
}

// ElaborateOrganizationPrompt defines the interface for organization
// elaboration prompts.
type ElaborateOrganizationPrompt interface {
	Organization() PromptVersion
}

// ElaborateCharacterVersions holds all versions of character elaboration
// prompts.
type ElaborateCharacterVersions struct {
	CharacterPrompt PromptVersion
}

func (e *ElaborateCharacterVersions) Character() PromptVersion { return e.CharacterPrompt }

// ElaborateOrganizationVersions holds all versions of organization
// elaboration prompts.
type ElaborateOrganizationVersions struct {
	OrganizationPrompt PromptVersion
}

func (e *ElaborateOrganizationVersions) Organization() PromptVersion { return e.OrganizationPrompt }

// characterPrompt expands a bare character name mentioned in an outline into
// full descriptive attributes.
func characterPrompt(context map[string]interface{}) ([]llm.Message, error) {
	sysPrompt := `You are a story development assistant. Given a character mentioned in a novel outline, invent a full character profile consistent with the project's world and with the characters that already exist. Respond with a single JSON object containing the keys: name, age, gender, role_type (protagonist|supporting|antagonist), personality, background, appearance, and optionally relationships (array of {target_character_name, relationship_type, intimacy_level, description}). Use the same language as the outline text.`

	profileJSON, err := ToPromptJSON(context["project_profile"])
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project profile: %w", err)
	}
	specJSON, err := ToPromptJSON(context["character_specification"])
	if err != nil {
		return nil, fmt.Errorf("failed to marshal character specification: %w", err)
	}

	userPrompt := fmt.Sprintf(`
<PROJECT>
%s
</PROJECT>
<EXISTING CHARACTERS>
%v
</EXISTING CHARACTERS>
<CHARACTER SPECIFICATION>
%s
</CHARACTER SPECIFICATION>

Create the full profile for this character. Only reference existing characters in the relationships array.
`, profileJSON, context["existing_entities"], specJSON)

	return []llm.Message{
		llm.NewSystemMessage(sysPrompt),
		llm.NewUserMessage(userPrompt),
	}, nil
}

// organizationPrompt expands a bare organization name mentioned in an
// outline into full descriptive attributes.
func organizationPrompt(context map[string]interface{}) ([]llm.Message, error) {
	sysPrompt := `You are a story development assistant. Given an organization or faction mentioned in a novel outline, invent a full organization profile consistent with the project's world. Respond with a single JSON object containing the keys: name, organization_type, organization_purpose, personality, background, appearance, power_level (0-100), location, motto, and optionally initial_members (array of {character_name, position, rank, loyalty} referencing only existing characters). Use the same language as the outline text.`

	profileJSON, err := ToPromptJSON(context["project_profile"])
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project profile: %w", err)
	}
	specJSON, err := ToPromptJSON(context["organization_specification"])
	if err != nil {
		return nil, fmt.Errorf("failed to marshal organization specification: %w", err)
	}

	userPrompt := fmt.Sprintf(`
<PROJECT>
%s
</PROJECT>
<EXISTING ORGANIZATIONS>
%v
</EXISTING ORGANIZATIONS>
<EXISTING CHARACTERS>
%v
</EXISTING CHARACTERS>
<ORGANIZATION SPECIFICATION>
%s
</ORGANIZATION SPECIFICATION>

Create the full profile for this organization. Only reference existing characters in initial_members.
`, profileJSON, context["existing_organizations"], context["existing_entities"], specJSON)

	return []llm.Message{
		llm.NewSystemMessage(sysPrompt),
		llm.NewUserMessage(userPrompt),
	}, nil
}

// NewElaborateCharacterVersions creates a new ElaborateCharacterVersions
// instance.
func NewElaborateCharacterVersions() *ElaborateCharacterVersions {
	return &ElaborateCharacterVersions{CharacterPrompt: NewPromptVersion(characterPrompt)}
}

// NewElaborateOrganizationVersions creates a new
// ElaborateOrganizationVersions instance.
func NewElaborateOrganizationVersions() *ElaborateOrganizationVersions {
	return &ElaborateOrganizationVersions{OrganizationPrompt: NewPromptVersion(organizationPrompt)}
}
