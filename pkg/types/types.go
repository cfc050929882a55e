package types

import (
	"fmt"
	"time"
)

// CharacterStatus describes the lifecycle state of a character or
// organization node.
type CharacterStatus string

const (
	StatusActive    CharacterStatus = "active"
	StatusDeceased  CharacterStatus = "deceased"
	StatusMissing   CharacterStatus = "missing"
	StatusRetired   CharacterStatus = "retired"
	StatusDestroyed CharacterStatus = "destroyed"
)

// Terminal reports whether the status ends a character's active presence in
// the story. Terminal transitions trigger the lifecycle cascade.
func (s CharacterStatus) Terminal() bool {
	switch s {
	case StatusDeceased, StatusMissing, StatusRetired:
		return true
	}
	return false
}

// RoleKind classifies a character's narrative role.
type RoleKind string

const (
	RoleProtagonist RoleKind = "protagonist"
	RoleSupporting  RoleKind = "supporting"
	RoleAntagonist  RoleKind = "antagonist"
)

// RelationshipStatus describes whether a relationship edge is current.
type RelationshipStatus string

const (
	RelationshipActive RelationshipStatus = "active"
	RelationshipPast   RelationshipStatus = "past"
)

// EdgeSource records which pipeline wrote an edge.
type EdgeSource string

const (
	SourceAuto     EdgeSource = "auto"
	SourceAnalysis EdgeSource = "analysis"
	SourceManual   EdgeSource = "manual"
)

// MembershipStatus describes a character's standing inside an organization.
type MembershipStatus string

const (
	MemberActive   MembershipStatus = "active"
	MemberRetired  MembershipStatus = "retired"
	MemberExpelled MembershipStatus = "expelled"
	MemberDeceased MembershipStatus = "deceased"
)

// Character is a node in the narrative entity graph. Organizations are
// characters with IsOrganization set and a companion Organization record.
type Character struct {
	ID             string   `json:"id"`
	ProjectID      string   `json:"project_id"`
	Name           string   `json:"name"`
	IsOrganization bool     `json:"is_organization"`
	RoleKind       RoleKind `json:"role_kind,omitempty"`
	Age            string   `json:"age,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	Personality    string   `json:"personality,omitempty"`
	Background     string   `json:"background,omitempty"`
	Appearance     string   `json:"appearance,omitempty"`

	// Organization-only descriptive fields, empty for plain characters.
	OrganizationType    string `json:"organization_type,omitempty"`
	OrganizationPurpose string `json:"organization_purpose,omitempty"`

	Status               CharacterStatus `json:"status"`
	StatusChangedChapter *int            `json:"status_changed_chapter,omitempty"`
	CurrentState         string          `json:"current_state,omitempty"`
	StateUpdatedChapter  *int            `json:"state_updated_chapter,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Organization is the 1:1 companion record to a Character with
// IsOrganization set. It is created atomically with its Character and never
// physically removed; destruction is a status flag plus PowerLevel = 0.
type Organization struct {
	ID          string `json:"id"`
	CharacterID string `json:"character_id"`
	ProjectID   string `json:"project_id"`
	PowerLevel  int    `json:"power_level"`
	MemberCount int    `json:"member_count"`
	Location    string `json:"location,omitempty"`
	Motto       string `json:"motto,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Relationship is a directed edge between two characters. At most one row
// exists per unordered character pair per project; lookups must check both
// directions before creating.
type Relationship struct {
	ID               string             `json:"id"`
	ProjectID        string             `json:"project_id"`
	FromCharacterID  string             `json:"from_character_id"`
	ToCharacterID    string             `json:"to_character_id"`
	RelationshipName string             `json:"relationship_name"`
	IntimacyLevel    int                `json:"intimacy_level"`
	Status           RelationshipStatus `json:"status"`
	Description      string             `json:"description,omitempty"`
	Source           EdgeSource         `json:"source"`
	EndedAt          string             `json:"ended_at,omitempty"`
}

// Touches reports whether the edge connects the given character on either side.
func (r *Relationship) Touches(characterID string) bool {
	return r.FromCharacterID == characterID || r.ToCharacterID == characterID
}

// Membership is an edge between an organization and a character. At most one
// row exists per (organization, character) pair.
type Membership struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	CharacterID    string           `json:"character_id"`
	Position       string           `json:"position"`
	Rank           int              `json:"rank"`
	Loyalty        int              `json:"loyalty"`
	Status         MembershipStatus `json:"status"`
	JoinedAt       string           `json:"joined_at,omitempty"`
	LeftAt         string           `json:"left_at,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	Source         EdgeSource       `json:"source"`
}

// Project carries the world profile handed to the elaboration capability.
type Project struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Genre      string `json:"genre,omitempty"`
	Theme      string `json:"theme,omitempty"`
	TimePeriod string `json:"time_period,omitempty"`
	Location   string `json:"location,omitempty"`
	Atmosphere string `json:"atmosphere,omitempty"`
	Rules      string `json:"rules,omitempty"`
}

// ChapterLabel formats a chapter number the way joined_at/left_at/ended_at
// markers are stored.
func ChapterLabel(chapter int) string {
	return fmt.Sprintf("第%d章", chapter)
}

// ChapterTag formats the prefix used for append-only note and description
// log lines.
func ChapterTag(chapter int) string {
	return fmt.Sprintf("[第%d章]", chapter)
}

// AppendNote appends a chapter-tagged line to an existing note log.
func AppendNote(existing string, chapter int, line string) string {
	tagged := ChapterTag(chapter) + " " + line
	if existing == "" {
		return tagged
	}
	return existing + "\n" + tagged
}

// Clamp bounds v to [min, max].
func Clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
