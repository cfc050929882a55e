package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MentionKind tags a mention as a character or an organization.
type MentionKind string

const (
	KindCharacter    MentionKind = "character"
	KindOrganization MentionKind = "organization"
)

// MentionRef is one entry in a narrative unit's characters list. The wire
// format is either a legacy bare name string or an object carrying name and
// kind. Legacy strings default to KindCharacter because the old format could
// not distinguish organizations.
type MentionRef struct {
	Name string
	Kind MentionKind
}

// UnmarshalJSON accepts both payload shapes. Object payloads may spell the
// kind field as "kind" or the older "type".
func (m *MentionRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		m.Name = strings.TrimSpace(name)
		m.Kind = KindCharacter
		return nil
	}

	var obj struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("mention entry is neither string nor object: %w", err)
	}

	kind := obj.Kind
	if kind == "" {
		kind = obj.Type
	}
	m.Name = strings.TrimSpace(obj.Name)
	switch kind {
	case string(KindOrganization):
		m.Kind = KindOrganization
	default:
		m.Kind = KindCharacter
	}
	return nil
}

// MarshalJSON always emits the typed object form.
func (m MentionRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}{m.Name, string(m.Kind)})
}

// NarrativeUnit is one freshly generated outline item. Summary and Content
// are alternates; Summary wins when both are present.
type NarrativeUnit struct {
	Title      string       `json:"title"`
	Summary    string       `json:"summary,omitempty"`
	Content    string       `json:"content,omitempty"`
	Characters []MentionRef `json:"characters,omitempty"`
}

// Text returns the unit's narrative text, preferring Summary.
func (u NarrativeUnit) Text() string {
	if u.Summary != "" {
		return u.Summary
	}
	return u.Content
}

// RelationshipChange is the per-target value in a character delta's
// relationship change map: either a bare description string or an object
// with a "change" field.
type RelationshipChange struct {
	Change string
}

func (r *RelationshipChange) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Change = s
		return nil
	}
	var obj struct {
		Change string `json:"change"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("relationship change is neither string nor object: %w", err)
	}
	if obj.Change == "" {
		// Preserve something legible for unexpected object shapes.
		r.Change = string(data)
	} else {
		r.Change = obj.Change
	}
	return nil
}

func (r RelationshipChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Change)
}

// MembershipChangeType enumerates organization-change events extracted from
// a chapter. Unlisted values fall through to a loyalty-only adjustment.
type MembershipChangeType string

const (
	ChangeJoined   MembershipChangeType = "joined"
	ChangeLeft     MembershipChangeType = "left"
	ChangeExpelled MembershipChangeType = "expelled"
	ChangeBetrayed MembershipChangeType = "betrayed"
	ChangePromoted MembershipChangeType = "promoted"
	ChangeDemoted  MembershipChangeType = "demoted"
)

// MembershipChange is one organization-change event for a character.
type MembershipChange struct {
	OrganizationName string               `json:"organization_name"`
	ChangeType       MembershipChangeType `json:"change_type"`
	NewPosition      string               `json:"new_position,omitempty"`
	LoyaltyChange    string               `json:"loyalty_change,omitempty"`
	Description      string               `json:"description,omitempty"`
}

// CharacterDelta is the structured "what changed" record for one character,
// extracted from an already-written chapter.
type CharacterDelta struct {
	CharacterName       string                        `json:"character_name"`
	StateBefore         string                        `json:"state_before,omitempty"`
	StateAfter          string                        `json:"state_after,omitempty"`
	PsychologicalChange string                        `json:"psychological_change,omitempty"`
	SurvivalStatus      CharacterStatus               `json:"survival_status,omitempty"`
	KeyEvent            string                        `json:"key_event,omitempty"`
	RelationshipChanges map[string]RelationshipChange `json:"relationship_changes,omitempty"`
	OrganizationChanges []MembershipChange            `json:"organization_changes,omitempty"`
}

// OrganizationDelta is the structured change record for one organization.
type OrganizationDelta struct {
	OrganizationName  string `json:"organization_name"`
	PowerChange       int    `json:"power_change,omitempty"`
	NewLocation       string `json:"new_location,omitempty"`
	NewPurpose        string `json:"new_purpose,omitempty"`
	StatusDescription string `json:"status_description,omitempty"`
	IsDestroyed       bool   `json:"is_destroyed,omitempty"`
	KeyEvent          string `json:"key_event,omitempty"`
}

// AnalysisBatch bundles one chapter's extracted deltas.
type AnalysisBatch struct {
	ChapterNumber      int                 `json:"chapter_number"`
	CharacterDeltas    []CharacterDelta    `json:"character_deltas,omitempty"`
	OrganizationDeltas []OrganizationDelta `json:"organization_deltas,omitempty"`
}
