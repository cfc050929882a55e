// Package sqlite provides the SQLite-backed Store implementation. Writes
// issued inside a transaction are staged on the connection and only become
// visible to other readers at Commit, which gives the engine its
// flush-without-commit discipline directly.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	genre TEXT NOT NULL DEFAULT '',
	theme TEXT NOT NULL DEFAULT '',
	time_period TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	atmosphere TEXT NOT NULL DEFAULT '',
	rules TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS characters (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	is_organization INTEGER NOT NULL DEFAULT 0,
	role_kind TEXT NOT NULL DEFAULT '',
	age TEXT NOT NULL DEFAULT '',
	gender TEXT NOT NULL DEFAULT '',
	personality TEXT NOT NULL DEFAULT '',
	background TEXT NOT NULL DEFAULT '',
	appearance TEXT NOT NULL DEFAULT '',
	organization_type TEXT NOT NULL DEFAULT '',
	organization_purpose TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	status_changed_chapter INTEGER,
	current_state TEXT NOT NULL DEFAULT '',
	state_updated_chapter INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (project_id, name)
);

CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	character_id TEXT NOT NULL UNIQUE REFERENCES characters(id),
	project_id TEXT NOT NULL REFERENCES projects(id),
	power_level INTEGER NOT NULL DEFAULT 50,
	member_count INTEGER NOT NULL DEFAULT 0,
	location TEXT NOT NULL DEFAULT '',
	motto TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS relationships (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	from_character_id TEXT NOT NULL REFERENCES characters(id),
	to_character_id TEXT NOT NULL REFERENCES characters(id),
	relationship_name TEXT NOT NULL DEFAULT '',
	intimacy_level INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'active',
	description TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT 'analysis',
	ended_at TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_relationships_pair
	ON relationships (project_id, from_character_id, to_character_id);

CREATE TABLE IF NOT EXISTS memberships (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	character_id TEXT NOT NULL REFERENCES characters(id),
	position TEXT NOT NULL DEFAULT '',
	rank INTEGER NOT NULL DEFAULT 0,
	loyalty INTEGER NOT NULL DEFAULT 50,
	status TEXT NOT NULL DEFAULT 'active',
	joined_at TEXT NOT NULL DEFAULT '',
	left_at TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT 'analysis',
	UNIQUE (organization_id, character_id)
);
`

// Store provides SQLite-backed persistence for the entity graph.
type Store struct {
	db *sql.DB
}

// Open opens (and initializes) a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying sql.DB instance.
func (s *Store) DB() *sql.DB { return s.db }

// BeginTx opens a database transaction.
func (s *Store) BeginTx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

type sqliteTx struct {
	tx *sql.Tx
}

func toMillis(value time.Time) int64 { return value.UTC().UnixMilli() }

func fromMillis(value int64) time.Time { return time.UnixMilli(value).UTC() }

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func (t *sqliteTx) GetProject(ctx context.Context, projectID string) (*types.Project, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, title, genre, theme, time_period, location, atmosphere, rules
		FROM projects WHERE id = ?`, projectID)

	var p types.Project
	err := row.Scan(&p.ID, &p.Title, &p.Genre, &p.Theme, &p.TimePeriod, &p.Location, &p.Atmosphere, &p.Rules)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &p, nil
}

const characterColumns = `id, project_id, name, is_organization, role_kind, age, gender,
	personality, background, appearance, organization_type, organization_purpose,
	status, status_changed_chapter, current_state, state_updated_chapter,
	created_at, updated_at`

func scanCharacter(scan func(dest ...any) error) (*types.Character, error) {
	var (
		c                    types.Character
		statusChapter        sql.NullInt64
		stateChapter         sql.NullInt64
		createdAt, updatedAt int64
	)
	err := scan(
		&c.ID, &c.ProjectID, &c.Name, &c.IsOrganization, &c.RoleKind, &c.Age, &c.Gender,
		&c.Personality, &c.Background, &c.Appearance, &c.OrganizationType, &c.OrganizationPurpose,
		&c.Status, &statusChapter, &c.CurrentState, &stateChapter,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.StatusChangedChapter = intPtr(statusChapter)
	c.StateUpdatedChapter = intPtr(stateChapter)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

func (t *sqliteTx) ListCharacters(ctx context.Context, projectID string) ([]*types.Character, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var out []*types.Character
	for rows.Next() {
		c, err := scanCharacter(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *sqliteTx) GetCharacterByName(ctx context.Context, projectID, name string) (*types.Character, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE project_id = ? AND name = ?`,
		projectID, name)
	c, err := scanCharacter(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan character: %w", err)
	}
	return c, nil
}

const organizationColumns = `id, character_id, project_id, power_level, member_count, location, motto, color`

func scanOrganization(scan func(dest ...any) error) (*types.Organization, error) {
	var o types.Organization
	err := scan(&o.ID, &o.CharacterID, &o.ProjectID, &o.PowerLevel, &o.MemberCount, &o.Location, &o.Motto, &o.Color)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *sqliteTx) ListOrganizations(ctx context.Context, projectID string) ([]*types.Organization, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []*types.Organization
	for rows.Next() {
		o, err := scanOrganization(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *sqliteTx) GetOrganizationByCharacter(ctx context.Context, characterID string) (*types.Organization, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE character_id = ?`, characterID)
	o, err := scanOrganization(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	return o, nil
}

const relationshipColumns = `id, project_id, from_character_id, to_character_id,
	relationship_name, intimacy_level, status, description, source, ended_at`

func scanRelationship(scan func(dest ...any) error) (*types.Relationship, error) {
	var r types.Relationship
	err := scan(&r.ID, &r.ProjectID, &r.FromCharacterID, &r.ToCharacterID,
		&r.RelationshipName, &r.IntimacyLevel, &r.Status, &r.Description, &r.Source, &r.EndedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *sqliteTx) FindRelationship(ctx context.Context, projectID, characterA, characterB string) (*types.Relationship, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+relationshipColumns+` FROM relationships
		WHERE project_id = ?
		  AND ((from_character_id = ? AND to_character_id = ?)
		    OR (from_character_id = ? AND to_character_id = ?))
		LIMIT 1`,
		projectID, characterA, characterB, characterB, characterA)
	r, err := scanRelationship(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan relationship: %w", err)
	}
	return r, nil
}

func (t *sqliteTx) ListActiveRelationships(ctx context.Context, projectID, characterID string) ([]*types.Relationship, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+relationshipColumns+` FROM relationships
		WHERE project_id = ? AND status = 'active'
		  AND (from_character_id = ? OR to_character_id = ?)`,
		projectID, characterID, characterID)
	if err != nil {
		return nil, fmt.Errorf("list active relationships: %w", err)
	}
	defer rows.Close()

	var out []*types.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const membershipColumns = `id, organization_id, character_id, position, rank, loyalty,
	status, joined_at, left_at, notes, source`

func scanMembership(scan func(dest ...any) error) (*types.Membership, error) {
	var m types.Membership
	err := scan(&m.ID, &m.OrganizationID, &m.CharacterID, &m.Position, &m.Rank, &m.Loyalty,
		&m.Status, &m.JoinedAt, &m.LeftAt, &m.Notes, &m.Source)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *sqliteTx) FindMembership(ctx context.Context, organizationID, characterID string) (*types.Membership, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE organization_id = ? AND character_id = ?`,
		organizationID, characterID)
	m, err := scanMembership(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	return m, nil
}

func (t *sqliteTx) ListActiveMemberships(ctx context.Context, characterID string) ([]*types.Membership, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE character_id = ? AND status = 'active'`,
		characterID)
	if err != nil {
		return nil, fmt.Errorf("list active memberships: %w", err)
	}
	defer rows.Close()

	var out []*types.Membership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *sqliteTx) ListActiveMembers(ctx context.Context, organizationID string) ([]*types.Membership, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE organization_id = ? AND status = 'active'`,
		organizationID)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	defer rows.Close()

	var out []*types.Membership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *sqliteTx) CreateProject(ctx context.Context, project *types.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO projects (id, title, genre, theme, time_period, location, atmosphere, rules)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.Title, project.Genre, project.Theme,
		project.TimePeriod, project.Location, project.Atmosphere, project.Rules)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (t *sqliteTx) CreateCharacter(ctx context.Context, character *types.Character) error {
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
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO characters (`+characterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		character.ID, character.ProjectID, character.Name, character.IsOrganization,
		character.RoleKind, character.Age, character.Gender,
		character.Personality, character.Background, character.Appearance,
		character.OrganizationType, character.OrganizationPurpose,
		character.Status, nullableInt(character.StatusChangedChapter),
		character.CurrentState, nullableInt(character.StateUpdatedChapter),
		toMillis(character.CreatedAt), toMillis(character.UpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrDuplicateName
		}
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

func (t *sqliteTx) CreateOrganization(ctx context.Context, organization *types.Organization) error {
	if organization.ID == "" {
		organization.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO organizations (`+organizationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		organization.ID, organization.CharacterID, organization.ProjectID,
		organization.PowerLevel, organization.MemberCount,
		organization.Location, organization.Motto, organization.Color)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (t *sqliteTx) CreateRelationship(ctx context.Context, relationship *types.Relationship) error {
	if relationship.ID == "" {
		relationship.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO relationships (`+relationshipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		relationship.ID, relationship.ProjectID,
		relationship.FromCharacterID, relationship.ToCharacterID,
		relationship.RelationshipName, relationship.IntimacyLevel,
		relationship.Status, relationship.Description, relationship.Source, relationship.EndedAt)
	if err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}
	return nil
}

func (t *sqliteTx) CreateMembership(ctx context.Context, membership *types.Membership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO memberships (`+membershipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		membership.ID, membership.OrganizationID, membership.CharacterID,
		membership.Position, membership.Rank, membership.Loyalty,
		membership.Status, membership.JoinedAt, membership.LeftAt,
		membership.Notes, membership.Source)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdateCharacter(ctx context.Context, character *types.Character) error {
	character.UpdatedAt = time.Now().UTC()
	res, err := t.tx.ExecContext(ctx, `
		UPDATE characters SET
			name = ?, role_kind = ?, age = ?, gender = ?,
			personality = ?, background = ?, appearance = ?,
			organization_type = ?, organization_purpose = ?,
			status = ?, status_changed_chapter = ?,
			current_state = ?, state_updated_chapter = ?, updated_at = ?
		WHERE id = ?`,
		character.Name, character.RoleKind, character.Age, character.Gender,
		character.Personality, character.Background, character.Appearance,
		character.OrganizationType, character.OrganizationPurpose,
		character.Status, nullableInt(character.StatusChangedChapter),
		character.CurrentState, nullableInt(character.StateUpdatedChapter),
		toMillis(character.UpdatedAt), character.ID)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	return requireRow(res)
}

func (t *sqliteTx) UpdateOrganization(ctx context.Context, organization *types.Organization) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE organizations SET
			power_level = ?, member_count = ?, location = ?, motto = ?, color = ?
		WHERE id = ?`,
		organization.PowerLevel, organization.MemberCount,
		organization.Location, organization.Motto, organization.Color, organization.ID)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	return requireRow(res)
}

func (t *sqliteTx) UpdateRelationship(ctx context.Context, relationship *types.Relationship) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE relationships SET
			relationship_name = ?, intimacy_level = ?, status = ?,
			description = ?, source = ?, ended_at = ?
		WHERE id = ?`,
		relationship.RelationshipName, relationship.IntimacyLevel, relationship.Status,
		relationship.Description, relationship.Source, relationship.EndedAt, relationship.ID)
	if err != nil {
		return fmt.Errorf("update relationship: %w", err)
	}
	return requireRow(res)
}

func (t *sqliteTx) UpdateMembership(ctx context.Context, membership *types.Membership) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE memberships SET
			position = ?, rank = ?, loyalty = ?, status = ?,
			joined_at = ?, left_at = ?, notes = ?, source = ?
		WHERE id = ?`,
		membership.Position, membership.Rank, membership.Loyalty, membership.Status,
		membership.JoinedAt, membership.LeftAt, membership.Notes, membership.Source, membership.ID)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Flush is a no-op: writes are already staged on the transaction and stay
// invisible to other connections until Commit.
func (t *sqliteTx) Flush(_ context.Context) error { return nil }

func (t *sqliteTx) Commit() error { return t.tx.Commit() }

func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }
