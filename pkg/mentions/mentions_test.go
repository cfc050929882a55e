package mentions

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/storyforge/go-storyforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMixedFormats(t *testing.T) {
	payload := `[
		{"title": "序章", "summary": "艾莉亚遇见凯恩", "characters": ["艾莉亚", "凯恩"]},
		{"title": "第一章", "content": "黑日公会登场", "characters": [
			{"name": "艾莉亚", "kind": "character"},
			{"name": "黑日公会", "kind": "organization"},
			{"name": "  ", "kind": "character"},
			"   "
		]}
	]`
	var units []types.NarrativeUnit
	require.NoError(t, json.Unmarshal([]byte(payload), &units))

	set := Extract(units)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []string{"凯恩", "艾莉亚"}, set.Names(types.KindCharacter))
	assert.Equal(t, []string{"黑日公会"}, set.Names(types.KindOrganization))
}

func TestExtractLegacyTypeKey(t *testing.T) {
	payload := `[{"title": "t", "summary": "s", "characters": [{"name": "公会", "type": "organization"}]}]`
	var units []types.NarrativeUnit
	require.NoError(t, json.Unmarshal([]byte(payload), &units))

	set := Extract(units)
	assert.Equal(t, []string{"公会"}, set.Names(types.KindOrganization))
	assert.Empty(t, set.Names(types.KindCharacter))
}

func TestExtractContextLimit(t *testing.T) {
	unit := func(title string) types.NarrativeUnit {
		return types.NarrativeUnit{
			Title:      title,
			Summary:    "艾莉亚出场",
			Characters: []types.MentionRef{{Name: "艾莉亚", Kind: types.KindCharacter}},
		}
	}
	set := Extract([]types.NarrativeUnit{unit("一"), unit("二"), unit("三"), unit("四")})

	ms := set.OfKind(types.KindCharacter)
	require.Len(t, ms, 1)
	assert.Len(t, ms[0].Contexts, 3)
	assert.Contains(t, ms[0].Contexts[0], "《一》")
}

func TestSnippetTruncation(t *testing.T) {
	long := strings.Repeat("长", 500)
	set := Extract([]types.NarrativeUnit{{
		Title:      "t",
		Summary:    long,
		Characters: []types.MentionRef{{Name: "甲", Kind: types.KindCharacter}},
	}})

	ms := set.OfKind(types.KindCharacter)
	require.Len(t, ms, 1)
	assert.Less(t, len([]rune(ms[0].Contexts[0])), 250)
}

func TestExtractPrefersSummaryOverContent(t *testing.T) {
	set := Extract([]types.NarrativeUnit{{
		Title:      "t",
		Summary:    "摘要",
		Content:    "正文",
		Characters: []types.MentionRef{{Name: "甲", Kind: types.KindCharacter}},
	}})
	ms := set.OfKind(types.KindCharacter)
	require.Len(t, ms, 1)
	assert.Contains(t, ms[0].Contexts[0], "摘要")
	assert.NotContains(t, ms[0].Contexts[0], "正文")
}
