package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storyforge/go-storyforge/pkg/types"
)

// MemoryStore is an in-memory Store implementation used by tests and
// examples. Transactions operate on a snapshot and publish it on Commit, so
// rolled-back batches leave no trace.
type MemoryStore struct {
	mu   sync.RWMutex
	data *graphData

	// FlushErr, when set, is returned by every Tx.Flush. Test hook for the
	// fatal-flush error path.
	FlushErr error
}

type graphData struct {
	projects      map[string]*types.Project
	characters    map[string]*types.Character
	organizations map[string]*types.Organization
	relationships map[string]*types.Relationship
	memberships   map[string]*types.Membership
}

func newGraphData() *graphData {
	return &graphData{
		projects:      make(map[string]*types.Project),
		characters:    make(map[string]*types.Character),
		organizations: make(map[string]*types.Organization),
		relationships: make(map[string]*types.Relationship),
		memberships:   make(map[string]*types.Membership),
	}
}

func (d *graphData) clone() *graphData {
	out := newGraphData()
	for id, p := range d.projects {
		cp := *p
		out.projects[id] = &cp
	}
	for id, c := range d.characters {
		cp := *c
		if c.StatusChangedChapter != nil {
			v := *c.StatusChangedChapter
			cp.StatusChangedChapter = &v
		}
		if c.StateUpdatedChapter != nil {
			v := *c.StateUpdatedChapter
			cp.StateUpdatedChapter = &v
		}
		out.characters[id] = &cp
	}
	for id, o := range d.organizations {
		cp := *o
		out.organizations[id] = &cp
	}
	for id, r := range d.relationships {
		cp := *r
		out.relationships[id] = &cp
	}
	for id, m := range d.memberships {
		cp := *m
		out.memberships[id] = &cp
	}
	return out
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newGraphData()}
}

// BeginTx snapshots the current graph for transactional access.
func (s *MemoryStore) BeginTx(ctx context.Context) (Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &memoryTx{store: s, data: s.data.clone()}, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

type memoryTx struct {
	store *MemoryStore
	data  *graphData
	done  bool
}

func (t *memoryTx) GetProject(_ context.Context, projectID string) (*types.Project, error) {
	if p, ok := t.data.projects[projectID]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (t *memoryTx) ListCharacters(_ context.Context, projectID string) ([]*types.Character, error) {
	var out []*types.Character
	for _, c := range t.data.characters {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *memoryTx) GetCharacterByName(_ context.Context, projectID, name string) (*types.Character, error) {
	for _, c := range t.data.characters {
		if c.ProjectID == projectID && c.Name == name {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) ListOrganizations(_ context.Context, projectID string) ([]*types.Organization, error) {
	var out []*types.Organization
	for _, o := range t.data.organizations {
		if o.ProjectID == projectID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (t *memoryTx) GetOrganizationByCharacter(_ context.Context, characterID string) (*types.Organization, error) {
	for _, o := range t.data.organizations {
		if o.CharacterID == characterID {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) FindRelationship(_ context.Context, projectID, characterA, characterB string) (*types.Relationship, error) {
	for _, r := range t.data.relationships {
		if r.ProjectID != projectID {
			continue
		}
		if (r.FromCharacterID == characterA && r.ToCharacterID == characterB) ||
			(r.FromCharacterID == characterB && r.ToCharacterID == characterA) {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) ListActiveRelationships(_ context.Context, projectID, characterID string) ([]*types.Relationship, error) {
	var out []*types.Relationship
	for _, r := range t.data.relationships {
		if r.ProjectID == projectID && r.Status == types.RelationshipActive && r.Touches(characterID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memoryTx) FindMembership(_ context.Context, organizationID, characterID string) (*types.Membership, error) {
	for _, m := range t.data.memberships {
		if m.OrganizationID == organizationID && m.CharacterID == characterID {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) ListActiveMemberships(_ context.Context, characterID string) ([]*types.Membership, error) {
	var out []*types.Membership
	for _, m := range t.data.memberships {
		if m.CharacterID == characterID && m.Status == types.MemberActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *memoryTx) ListActiveMembers(_ context.Context, organizationID string) ([]*types.Membership, error) {
	var out []*types.Membership
	for _, m := range t.data.memberships {
		if m.OrganizationID == organizationID && m.Status == types.MemberActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *memoryTx) CreateProject(_ context.Context, project *types.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	cp := *project
	t.data.projects[project.ID] = &cp
	return nil
}

func (t *memoryTx) CreateCharacter(ctx context.Context, character *types.Character) error {
	if existing, err := t.GetCharacterByName(ctx, character.ProjectID, character.Name); err == nil && existing != nil {
		return ErrDuplicateName
	}
	if character.ID == "" {
		character.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if character.CreatedAt.IsZero() {
		character.CreatedAt = now
	}
	character.UpdatedAt = now
	if character.Status == "" {
		character.Status = types.StatusActive
	}
	cp := *character
	t.data.characters[character.ID] = &cp
	return nil
}

func (t *memoryTx) CreateOrganization(_ context.Context, organization *types.Organization) error {
	if organization.ID == "" {
		organization.ID = uuid.NewString()
	}
	cp := *organization
	t.data.organizations[organization.ID] = &cp
	return nil
}

func (t *memoryTx) CreateRelationship(_ context.Context, relationship *types.Relationship) error {
	if relationship.ID == "" {
		relationship.ID = uuid.NewString()
	}
	cp := *relationship
	t.data.relationships[relationship.ID] = &cp
	return nil
}

func (t *memoryTx) CreateMembership(_ context.Context, membership *types.Membership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	cp := *membership
	t.data.memberships[membership.ID] = &cp
	return nil
}

func (t *memoryTx) UpdateCharacter(_ context.Context, character *types.Character) error {
	if _, ok := t.data.characters[character.ID]; !ok {
		return ErrNotFound
	}
	character.UpdatedAt = time.Now().UTC()
	cp := *character
	t.data.characters[character.ID] = &cp
	return nil
}

func (t *memoryTx) UpdateOrganization(_ context.Context, organization *types.Organization) error {
	if _, ok := t.data.organizations[organization.ID]; !ok {
		return ErrNotFound
	}
	cp := *organization
	t.data.organizations[organization.ID] = &cp
	return nil
}

func (t *memoryTx) UpdateRelationship(_ context.Context, relationship *types.Relationship) error {
	if _, ok := t.data.relationships[relationship.ID]; !ok {
		return ErrNotFound
	}
	cp := *relationship
	t.data.relationships[relationship.ID] = &cp
	return nil
}

func (t *memoryTx) UpdateMembership(_ context.Context, membership *types.Membership) error {
	if _, ok := t.data.memberships[membership.ID]; !ok {
		return ErrNotFound
	}
	cp := *membership
	t.data.memberships[membership.ID] = &cp
	return nil
}

func (t *memoryTx) Flush(_ context.Context) error {
	return t.store.FlushErr
}

func (t *memoryTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.data = t.data
	return nil
}

func (t *memoryTx) Rollback() error {
	t.done = true
	return nil
}
