package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

func membershipBatch(chapter int, name string, change types.MembershipChange) types.AnalysisBatch {
	return types.AnalysisBatch{
		ChapterNumber: chapter,
		CharacterDeltas: []types.CharacterDelta{{
			CharacterName:       name,
			OrganizationChanges: []types.MembershipChange{change},
		}},
	}
}

func TestMembershipJoinCreatesEdgeAndCountsMember(t *testing.T) {
	ctx := context.Background()
	s := seedGraph(t)

	_, tx := apply(t, s, membershipBatch(4, "苏婉", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangeJoined,
		NewPosition:      "供奉",
		LoyaltyChange:    "坚定",
		Description:      "入阁为供奉",
	}))
	defer tx.Rollback()

	membership, err := tx.FindMembership(ctx, "org1", "c-su")
	require.NoError(t, err)
	assert.Equal(t, types.MemberActive, membership.Status)
	assert.Equal(t, "供奉", membership.Position)
	assert.Equal(t, 65, membership.Loyalty) // 50 + 坚定(+15)
	assert.Equal(t, "第4章", membership.JoinedAt)
	assert.Equal(t, "[第4章] joined: 入阁为供奉", membership.Notes)
	assert.Equal(t, types.SourceAnalysis, membership.Source)

	org, err := tx.GetOrganizationByCharacter(ctx, "c-org")
	require.NoError(t, err)
	assert.Equal(t, 2, org.MemberCount)
}

func TestMembershipPromotedDefaultsLoyaltyGain(t *testing.T) {
	ctx := context.Background()
	s := seedGraph(t)

	_, tx := apply(t, s, membershipBatch(5, "林远", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangePromoted,
		NewPosition:      "执事",
	}))
	defer tx.Rollback()

	membership, err := tx.FindMembership(ctx, "org1", "c-lin")
	require.NoError(t, err)
	assert.Equal(t, 2, membership.Rank)
	assert.Equal(t, "执事", membership.Position)
	assert.Equal(t, 75, membership.Loyalty) // 70 + default +5
}

func TestMembershipDemotedFloorsRankAtZero(t *testing.T) {
	ctx := context.Background()
	s := seedGraph(t)

	for i := 0; i < 3; i++ {
		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		_, applyErr := newReconciler().Apply(ctx, tx, "p1", membershipBatch(6, "林远", types.MembershipChange{
			OrganizationName: "天机阁",
			ChangeType:       types.ChangeDemoted,
		}))
		require.NoError(t, applyErr)
		require.NoError(t, tx.Commit())
	}

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	membership, err := tx.FindMembership(ctx, "org1", "c-lin")
	require.NoError(t, err)
	// Rank goes 1 -> 0 and stays floored; loyalty keeps dropping.
	assert.Equal(t, 0, membership.Rank)
	assert.Equal(t, 55, membership.Loyalty)
}

func TestMembershipBetrayalExpels(t *testing.T) {
	ctx := context.Background()
	s := seedGraph(t)

	_, tx := apply(t, s, membershipBatch(7, "林远", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangeBetrayed,
		LoyaltyChange:    "背叛",
	}))
	defer tx.Rollback()

	membership, err := tx.FindMembership(ctx, "org1", "c-lin")
	require.NoError(t, err)
	assert.Equal(t, types.MemberExpelled, membership.Status)
	assert.Equal(t, "第7章", membership.LeftAt)
	assert.Equal(t, 20, membership.Loyalty) // 70 + 背叛(-50)
	// The chapter log line is written even without a description.
	assert.Equal(t, "[第7章] betrayed", membership.Notes)

	// The count tracks creations, not departures.
	org, err := tx.GetOrganizationByCharacter(ctx, "c-org")
	require.NoError(t, err)
	assert.Equal(t, 1, org.MemberCount)
}

func TestMembershipExitEventsNeedActiveRow(t *testing.T) {
	ctx := context.Background()
	s := seedGraph(t)

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, applyErr := newReconciler().Apply(ctx, tx, "p1", membershipBatch(7, "林远", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangeBetrayed,
	}))
	require.NoError(t, applyErr)
	require.NoError(t, tx.Commit())

	// A "left" event arriving after the expulsion must not rewrite the
	// exit status or its chapter.
	_, tx2 := apply(t, s, membershipBatch(8, "林远", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangeLeft,
	}))
	defer tx2.Rollback()

	membership, err := tx2.FindMembership(ctx, "org1", "c-lin")
	require.NoError(t, err)
	assert.Equal(t, types.MemberExpelled, membership.Status)
	assert.Equal(t, "第7章", membership.LeftAt)
}

func TestMembershipJoinedWhileActiveIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := seedGraph(t)

	_, tx := apply(t, s, membershipBatch(5, "林远", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangeJoined,
		NewPosition:      "长老",
		LoyaltyChange:    "坚定",
	}))
	defer tx.Rollback()

	membership, err := tx.FindMembership(ctx, "org1", "c-lin")
	require.NoError(t, err)
	assert.Equal(t, "弟子", membership.Position)
	assert.Equal(t, 70, membership.Loyalty)
	assert.Empty(t, membership.JoinedAt)
	assert.Empty(t, membership.Notes)
}

func TestMembershipRejoinReactivatesRow(t *testing.T) {
	ctx := context.Background()
	s := seedGraph(t)

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, applyErr := newReconciler().Apply(ctx, tx, "p1", membershipBatch(8, "林远", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangeLeft,
	}))
	require.NoError(t, applyErr)
	require.NoError(t, tx.Commit())

	_, tx2 := apply(t, s, membershipBatch(9, "林远", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangeJoined,
		NewPosition:      "客卿",
	}))
	defer tx2.Rollback()

	membership, err := tx2.FindMembership(ctx, "org1", "c-lin")
	require.NoError(t, err)
	assert.Equal(t, types.MemberActive, membership.Status)
	assert.Equal(t, "客卿", membership.Position)
	assert.Equal(t, "第9章", membership.JoinedAt)
	assert.Empty(t, membership.LeftAt)

	// Reactivation does not create a new row or bump the count.
	org, err := tx2.GetOrganizationByCharacter(ctx, "c-org")
	require.NoError(t, err)
	assert.Equal(t, 1, org.MemberCount)
}

func TestMembershipLeftRetires(t *testing.T) {
	ctx := context.Background()
	s := seedGraph(t)

	_, tx := apply(t, s, membershipBatch(8, "林远", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangeLeft,
	}))
	defer tx.Rollback()

	membership, err := tx.FindMembership(ctx, "org1", "c-lin")
	require.NoError(t, err)
	assert.Equal(t, types.MemberRetired, membership.Status)
	assert.Equal(t, "第8章", membership.LeftAt)
}

func TestMembershipNonJoinWithoutEdgeIsIgnored(t *testing.T) {
	ctx := context.Background()
	s := seedGraph(t)

	report, tx := apply(t, s, membershipBatch(9, "苏婉", types.MembershipChange{
		OrganizationName: "天机阁",
		ChangeType:       types.ChangePromoted,
	}))
	defer tx.Rollback()

	assert.Equal(t, 1, report.Applied)
	_, err := tx.FindMembership(ctx, "org1", "c-su")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMembershipUnknownOrganizationIsIgnored(t *testing.T) {
	s := seedGraph(t)

	report, tx := apply(t, s, membershipBatch(9, "林远", types.MembershipChange{
		OrganizationName: "不存在门",
		ChangeType:       types.ChangeJoined,
	}))
	defer tx.Rollback()

	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 0, report.Failed)
}
