// Package lexicon maps free-text change descriptions to bounded numeric
// deltas via weighted keyword lookup. The keyword weights are part of the
// engine's observable contract: every keyword contained in the text
// contributes its weight (additive across distinct keywords, not
// first-match), and the sum is clamped to the lexicon's range.
package lexicon

import "strings"

// Intimacy maps relationship-change keywords to intimacy adjustments.
var Intimacy = map[string]int{
	// positive shifts
	"改善": +10, "加深": +15, "信任": +10, "亲近": +15,
	"友好": +10, "认可": +10, "合作": +5, "和解": +20,
	"喜欢": +15, "爱": +20, "尊敬": +10, "感激": +10,
	"好转": +10, "增进": +10, "亲密": +15, "忠诚": +10,
	// negative shifts
	"恶化": -10, "疏远": -15, "背叛": -30, "敌对": -25,
	"矛盾": -10, "冲突": -15, "怀疑": -10, "不信任": -15,
	"厌恶": -20, "仇恨": -25, "决裂": -30, "猜忌": -10,
	"紧张": -5, "破裂": -25, "反目": -25, "嫉妒": -10,
	// neutral or special
	"初识": 0, "相遇": 0, "结盟": +10, "分离": -5,
}

// Loyalty maps membership-change keywords to loyalty adjustments.
var Loyalty = map[string]int{
	"提升": +10, "增强": +10, "坚定": +15, "忠心": +15,
	"动摇": -15, "怀疑": -10, "不满": -10, "降低": -10,
	"背叛": -50, "叛变": -50, "反感": -20, "失望": -15,
}

const (
	// IntimacyMin and IntimacyMax bound a single relationship adjustment.
	IntimacyMin = -30
	IntimacyMax = 30
	// LoyaltyMin and LoyaltyMax bound a single loyalty adjustment.
	LoyaltyMin = -50
	LoyaltyMax = 50
)

// Score sums the weights of every lexicon keyword contained in text and
// clamps the result to [min, max]. Empty text or no matches yield 0.
func Score(text string, lexicon map[string]int, min, max int) int {
	if text == "" {
		return 0
	}
	delta := 0
	matched := false
	for keyword, weight := range lexicon {
		if strings.Contains(text, keyword) {
			delta += weight
			matched = true
		}
	}
	if !matched {
		return 0
	}
	if delta < min {
		return min
	}
	if delta > max {
		return max
	}
	return delta
}

// IntimacyDelta scores text against the relationship-intimacy lexicon.
func IntimacyDelta(text string) int {
	return Score(text, Intimacy, IntimacyMin, IntimacyMax)
}

// LoyaltyDelta scores text against the membership-loyalty lexicon.
func LoyaltyDelta(text string) int {
	return Score(text, Loyalty, LoyaltyMin, LoyaltyMax)
}
