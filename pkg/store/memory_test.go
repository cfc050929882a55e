package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

func TestMemoryStoreCommitPublishesWrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateProject(ctx, &types.Project{ID: "p1", Title: "长夜"}))
	require.NoError(t, tx.CreateCharacter(ctx, &types.Character{ProjectID: "p1", Name: "林远"}))
	require.NoError(t, tx.Commit())

	tx2, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	got, err := tx2.GetCharacterByName(ctx, "p1", "林远")
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, types.StatusActive, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestMemoryStoreRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateCharacter(ctx, &types.Character{ProjectID: "p1", Name: "柳如烟"}))
	require.NoError(t, tx.Flush(ctx))
	require.NoError(t, tx.Rollback())

	tx2, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	_, err = tx2.GetCharacterByName(ctx, "p1", "柳如烟")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStoreStagedWritesVisibleInSameTx(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.CreateCharacter(ctx, &types.Character{ProjectID: "p1", Name: "沈青崖"}))

	// Visible within the transaction before any flush or commit.
	got, err := tx.GetCharacterByName(ctx, "p1", "沈青崖")
	require.NoError(t, err)
	assert.Equal(t, "沈青崖", got.Name)

	// Invisible to a concurrent transaction.
	other, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer other.Rollback()
	_, err = other.GetCharacterByName(ctx, "p1", "沈青崖")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStoreDuplicateCharacterName(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.CreateCharacter(ctx, &types.Character{ProjectID: "p1", Name: "赵无极"}))
	err = tx.CreateCharacter(ctx, &types.Character{ProjectID: "p1", Name: "赵无极"})
	assert.ErrorIs(t, err, store.ErrDuplicateName)

	// Same name in a different project is fine.
	err = tx.CreateCharacter(ctx, &types.Character{ProjectID: "p2", Name: "赵无极"})
	assert.NoError(t, err)
}

func TestMemoryStoreFindRelationshipBothDirections(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	rel := &types.Relationship{
		ProjectID:       "p1",
		FromCharacterID: "a",
		ToCharacterID:   "b",
		IntimacyLevel:   60,
		Status:          types.RelationshipActive,
		Source:          types.SourceAnalysis,
	}
	require.NoError(t, tx.CreateRelationship(ctx, rel))

	forward, err := tx.FindRelationship(ctx, "p1", "a", "b")
	require.NoError(t, err)
	reverse, err := tx.FindRelationship(ctx, "p1", "b", "a")
	require.NoError(t, err)
	assert.Equal(t, forward.ID, reverse.ID)

	_, err = tx.FindRelationship(ctx, "p2", "a", "b")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStoreActiveListingsFilterStatus(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.CreateRelationship(ctx, &types.Relationship{
		ProjectID: "p1", FromCharacterID: "a", ToCharacterID: "b",
		Status: types.RelationshipActive,
	}))
	require.NoError(t, tx.CreateRelationship(ctx, &types.Relationship{
		ProjectID: "p1", FromCharacterID: "a", ToCharacterID: "c",
		Status: types.RelationshipPast,
	}))
	require.NoError(t, tx.CreateMembership(ctx, &types.Membership{
		OrganizationID: "org1", CharacterID: "a", Status: types.MemberActive,
	}))
	require.NoError(t, tx.CreateMembership(ctx, &types.Membership{
		OrganizationID: "org1", CharacterID: "b", Status: types.MemberRetired,
	}))

	rels, err := tx.ListActiveRelationships(ctx, "p1", "a")
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	members, err := tx.ListActiveMembers(ctx, "org1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "a", members[0].CharacterID)
}

func TestMemoryStoreUpdateMissingRecord(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.UpdateCharacter(ctx, &types.Character{ID: "missing", ProjectID: "p1", Name: "无名"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStoreFlushErrHook(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.FlushErr = errors.New("disk full")

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	assert.EqualError(t, tx.Flush(ctx), "disk full")
}
