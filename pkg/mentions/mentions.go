// Package mentions normalizes heterogeneous mention payloads from freshly
// generated outlines into a deduplicated set of named entities with the
// narrative context they appeared in. It performs no I/O.
package mentions

import (
	"fmt"
	"sort"

	"github.com/storyforge/go-storyforge/pkg/types"
)

// maxContexts is the number of narrative snippets retained per name for
// later elaboration.
const maxContexts = 3

// maxSnippetLen truncates unit text inside a context snippet.
const maxSnippetLen = 200

// Mention is one deduplicated (name, kind) pair with its context snippets.
type Mention struct {
	Name     string
	Kind     types.MentionKind
	Contexts []string
}

// Set holds extracted mentions keyed by (name, kind).
type Set struct {
	order []string
	byKey map[string]*Mention
}

// Extract walks a batch of narrative units and collects every valid mention.
// Blank and whitespace-only names are discarded. A name mentioned as both a
// character and an organization yields two entries.
func Extract(units []types.NarrativeUnit) *Set {
	s := &Set{byKey: make(map[string]*Mention)}
	for _, unit := range units {
		for _, ref := range unit.Characters {
			if ref.Name == "" {
				continue
			}
			key := string(ref.Kind) + "\x00" + ref.Name
			m, ok := s.byKey[key]
			if !ok {
				m = &Mention{Name: ref.Name, Kind: ref.Kind}
				s.byKey[key] = m
				s.order = append(s.order, key)
			}
			if len(m.Contexts) < maxContexts {
				m.Contexts = append(m.Contexts, snippet(unit))
			}
		}
	}
	return s
}

func snippet(unit types.NarrativeUnit) string {
	text := unit.Text()
	if len(text) > maxSnippetLen {
		// Truncate on a rune boundary so multibyte text stays valid.
		runes := []rune(text)
		if len(runes) > maxSnippetLen {
			runes = runes[:maxSnippetLen]
		}
		text = string(runes)
	}
	return fmt.Sprintf("《%s》: %s", unit.Title, text)
}

// Len returns the number of distinct mentions.
func (s *Set) Len() int {
	return len(s.byKey)
}

// OfKind returns all mentions of the given kind in first-seen order.
func (s *Set) OfKind(kind types.MentionKind) []*Mention {
	var out []*Mention
	for _, key := range s.order {
		if m := s.byKey[key]; m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Names returns the sorted distinct names of the given kind.
func (s *Set) Names(kind types.MentionKind) []string {
	var names []string
	for _, m := range s.OfKind(kind) {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}
