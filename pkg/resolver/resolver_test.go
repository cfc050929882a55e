package resolver_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyforge/go-storyforge/pkg/elaborate"
	"github.com/storyforge/go-storyforge/pkg/llm"
	"github.com/storyforge/go-storyforge/pkg/mentions"
	"github.com/storyforge/go-storyforge/pkg/prompts"
	"github.com/storyforge/go-storyforge/pkg/resolver"
	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/types"
)

// promptClient answers based on which entity the prompt asks about, so
// retries and call ordering stay irrelevant. It keys on the quoted name in
// the specification block rather than raw substrings: context snippets
// routinely mention other entities by name.
type promptClient struct {
	byName map[string]string
}

func (p *promptClient) Chat(_ context.Context, messages []llm.Message) (*llm.Response, error) {
	var user string
	for _, msg := range messages {
		if msg.Role == llm.RoleUser {
			user = msg.Content
		}
	}
	for name, response := range p.byName {
		if strings.Contains(user, `"name": "`+name+`"`) {
			return &llm.Response{Content: response}, nil
		}
	}
	return &llm.Response{Content: "no idea"}, nil
}

func (p *promptClient) Close() error { return nil }

func seedProject(t *testing.T, s *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateProject(ctx, &types.Project{ID: "p1", Title: "长夜", Genre: "仙侠"}))
	require.NoError(t, tx.CreateCharacter(ctx, &types.Character{ID: "c-su", ProjectID: "p1", Name: "苏婉"}))
	require.NoError(t, tx.Commit())
}

func newResolver(client llm.Client) *resolver.Resolver {
	e := elaborate.NewElaborator(client, prompts.NewLibrary(), nil)
	return resolver.NewResolver(e, nil)
}

func TestResolveCreatesMissingCharacterWithRelationships(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedProject(t, s)

	client := &promptClient{byName: map[string]string{
		"林远": `{
			"name": "林远", "age": "28", "gender": "男", "role_type": "protagonist",
			"personality": "坚毅", "background": "剑宗弟子", "appearance": "青衫",
			"relationships": [
				{"target_character_name": "苏婉", "relationship_type": "同门", "intimacy_level": 65, "description": "自幼相识"},
				{"target_character_name": "无名氏", "relationship_type": "仇人", "intimacy_level": -40, "description": "旧怨"}
			]
		}`,
	}}

	set := mentions.Extract([]types.NarrativeUnit{{
		Title:      "第一章",
		Summary:    "林远初入山门，得遇苏婉",
		Characters: []types.MentionRef{{Name: "林远", Kind: types.KindCharacter}, {Name: "苏婉", Kind: types.KindCharacter}},
	}})

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	report, err := newResolver(client).Resolve(ctx, tx, "p1", set)
	require.NoError(t, err)

	assert.Equal(t, []string{"林远"}, report.Missing)
	assert.Equal(t, []string{"林远"}, report.Created)
	assert.Equal(t, 1, report.CreatedCount())

	created, err := tx.GetCharacterByName(ctx, "p1", "林远")
	require.NoError(t, err)
	assert.Equal(t, types.RoleProtagonist, created.RoleKind)
	assert.Equal(t, types.StatusActive, created.Status)

	// The seed pointing at an existing character becomes an auto edge; the
	// seed pointing at an unknown name is silently dropped.
	rel, err := tx.FindRelationship(ctx, "p1", created.ID, "c-su")
	require.NoError(t, err)
	assert.Equal(t, 65, rel.IntimacyLevel)
	assert.Equal(t, types.SourceAuto, rel.Source)
	assert.Equal(t, types.RelationshipActive, rel.Status)

	rels, err := tx.ListActiveRelationships(ctx, "p1", created.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func TestResolveCreatesOrganizationWithInitialMembers(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedProject(t, s)

	client := &promptClient{byName: map[string]string{
		"天机阁": `{
			"name": "天机阁", "organization_type": "情报组织", "organization_purpose": "监视天下",
			"personality": "神秘", "background": "立派百年", "appearance": "云中楼阁",
			"power_level": 80, "location": "云都", "motto": "天机不可泄露",
			"initial_members": [
				{"character_name": "苏婉", "position": "阁主", "rank": 3, "loyalty": 95},
				{"character_name": "不存在者", "position": "长老", "rank": 2, "loyalty": 70}
			]
		}`,
	}}

	set := mentions.Extract([]types.NarrativeUnit{{
		Title:      "第二章",
		Summary:    "天机阁现世",
		Characters: []types.MentionRef{{Name: "天机阁", Kind: types.KindOrganization}},
	}})

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	report, err := newResolver(client).Resolve(ctx, tx, "p1", set)
	require.NoError(t, err)
	assert.Equal(t, []string{"天机阁"}, report.Created)

	node, err := tx.GetCharacterByName(ctx, "p1", "天机阁")
	require.NoError(t, err)
	assert.True(t, node.IsOrganization)
	assert.Equal(t, "情报组织", node.OrganizationType)

	org, err := tx.GetOrganizationByCharacter(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, org.PowerLevel)
	assert.Equal(t, "云都", org.Location)
	// Only the resolvable member counts.
	assert.Equal(t, 1, org.MemberCount)

	membership, err := tx.FindMembership(ctx, org.ID, "c-su")
	require.NoError(t, err)
	assert.Equal(t, "阁主", membership.Position)
	assert.Equal(t, 95, membership.Loyalty)
	assert.Equal(t, types.MemberActive, membership.Status)
	assert.Equal(t, types.SourceAuto, membership.Source)
}

func TestResolveSkipsExistingEntities(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedProject(t, s)

	set := mentions.Extract([]types.NarrativeUnit{{
		Title:      "第三章",
		Summary:    "苏婉闭关",
		Characters: []types.MentionRef{{Name: "苏婉", Kind: types.KindCharacter}},
	}})

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	// No LLM response is configured; an attempted elaboration would fail.
	report, err := newResolver(&promptClient{}).Resolve(ctx, tx, "p1", set)
	require.NoError(t, err)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Created)
}

func TestResolveToleratesPerEntityFailure(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedProject(t, s)

	// 黑水帮 never gets a parseable response; 林远 does.
	client := &promptClient{byName: map[string]string{
		"林远": `{"name": "林远", "role_type": "supporting"}`,
	}}

	set := mentions.Extract([]types.NarrativeUnit{{
		Title:   "第四章",
		Summary: "黑水帮围攻林远",
		Characters: []types.MentionRef{
			{Name: "黑水帮", Kind: types.KindOrganization},
			{Name: "林远", Kind: types.KindCharacter},
		},
	}})

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	report, err := newResolver(client).Resolve(ctx, tx, "p1", set)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"黑水帮", "林远"}, report.Missing)
	assert.Equal(t, []string{"林远"}, report.Created)

	var failed *resolver.Item
	for i := range report.Items {
		if report.Items[i].Outcome == resolver.OutcomeFailed {
			failed = &report.Items[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "黑水帮", failed.Name)
	assert.NotEmpty(t, failed.Error)

	_, err = tx.GetCharacterByName(ctx, "p1", "黑水帮")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// orgCreateFailTx fails every organization-record insert while letting the
// node insert through, leaving the pair half staged.
type orgCreateFailTx struct {
	store.Tx
}

func (f *orgCreateFailTx) CreateOrganization(context.Context, *types.Organization) error {
	return assert.AnError
}

func TestResolveHalfStagedOrganizationAbortsBatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedProject(t, s)

	client := &promptClient{byName: map[string]string{
		"黑水帮": `{"name": "黑水帮", "organization_type": "帮派", "power_level": 35}`,
	}}

	set := mentions.Extract([]types.NarrativeUnit{{
		Title:      "第六章",
		Summary:    "黑水帮现身",
		Characters: []types.MentionRef{{Name: "黑水帮", Kind: types.KindOrganization}},
	}})

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	// The node goes in but the record insert fails; skipping ahead would
	// commit an organization node without its record.
	_, err = newResolver(client).Resolve(ctx, &orgCreateFailTx{Tx: tx}, "p1", set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "黑水帮")
}

func TestResolveCharacterNameMatchesOrganizationNode(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedProject(t, s)

	tx0, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx0.CreateCharacter(ctx, &types.Character{
		ID: "c-org", ProjectID: "p1", Name: "天机阁", IsOrganization: true,
	}))
	require.NoError(t, tx0.Commit())

	// A character-kind mention of an existing organization name is not
	// missing: character mentions diff against every persisted name.
	set := mentions.Extract([]types.NarrativeUnit{{
		Title:      "第五章",
		Summary:    "天机阁出手",
		Characters: []types.MentionRef{{Name: "天机阁", Kind: types.KindCharacter}},
	}})

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	report, err := newResolver(&promptClient{}).Resolve(ctx, tx, "p1", set)
	require.NoError(t, err)
	assert.Empty(t, report.Missing)
}
