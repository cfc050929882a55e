// Package store defines the persistence boundary of the synchronization
// engine. The engine stages writes through a transactional store; committing
// or rolling back the transaction belongs to the caller that owns the batch.
package store

import (
	"context"
	"errors"

	"github.com/storyforge/go-storyforge/pkg/types"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateName is returned when creating a character whose name
	// already exists within the project.
	ErrDuplicateName = errors.New("character name already exists in project")
)

// Store opens transactions against the entity graph.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is one logical transaction over the entity graph. Reads observe writes
// staged earlier in the same transaction. Flush pushes staged writes to the
// backend without committing; a partially processed batch is never visible
// to other readers until Commit.
type Tx interface {
	Reader
	Writer

	// Flush stages all pending writes without committing.
	Flush(ctx context.Context) error
	Commit() error
	Rollback() error
}

// Reader provides the lookup primitives the engine consumes.
type Reader interface {
	GetProject(ctx context.Context, projectID string) (*types.Project, error)

	// ListCharacters returns every character of the project, organizations
	// included.
	ListCharacters(ctx context.Context, projectID string) ([]*types.Character, error)
	GetCharacterByName(ctx context.Context, projectID, name string) (*types.Character, error)

	ListOrganizations(ctx context.Context, projectID string) ([]*types.Organization, error)
	GetOrganizationByCharacter(ctx context.Context, characterID string) (*types.Organization, error)

	// FindRelationship looks up the edge for an unordered character pair,
	// checking both directions.
	FindRelationship(ctx context.Context, projectID, characterA, characterB string) (*types.Relationship, error)
	ListActiveRelationships(ctx context.Context, projectID, characterID string) ([]*types.Relationship, error)

	FindMembership(ctx context.Context, organizationID, characterID string) (*types.Membership, error)
	ListActiveMemberships(ctx context.Context, characterID string) ([]*types.Membership, error)
	ListActiveMembers(ctx context.Context, organizationID string) ([]*types.Membership, error)
}

// Writer provides the staged mutation primitives. Create methods assign an
// ID when the record carries none.
type Writer interface {
	CreateProject(ctx context.Context, project *types.Project) error
	CreateCharacter(ctx context.Context, character *types.Character) error
	CreateOrganization(ctx context.Context, organization *types.Organization) error
	CreateRelationship(ctx context.Context, relationship *types.Relationship) error
	CreateMembership(ctx context.Context, membership *types.Membership) error

	UpdateCharacter(ctx context.Context, character *types.Character) error
	UpdateOrganization(ctx context.Context, organization *types.Organization) error
	UpdateRelationship(ctx context.Context, relationship *types.Relationship) error
	UpdateMembership(ctx context.Context, membership *types.Membership) error
}
