package prompts

import (
	"bytes"
	"encoding/json"

	"github.com/storyforge/go-storyforge/pkg/llm"
)

// PromptFunction is a function that generates prompt messages from context.
type PromptFunction func(context map[string]interface{}) ([]llm.Message, error)

// PromptVersion represents a versioned prompt function.
type PromptVersion interface {
	Call(context map[string]interface{}) ([]llm.Message, error)
}

type promptVersionImpl struct {
	fn PromptFunction
}

// Call executes the prompt function with the given context.
func (p *promptVersionImpl) Call(context map[string]interface{}) ([]llm.Message, error) {
	messages, err := p.fn(context)
	if err != nil {
		return nil, err
	}

	// Narrative text is frequently non-ASCII; keep it readable in responses.
	for i, msg := range messages {
		if msg.Role == llm.RoleSystem {
			messages[i].Content += "\nDo not escape unicode characters.\n"
		}
	}

	return messages, nil
}

// NewPromptVersion creates a new PromptVersion from a function.
func NewPromptVersion(fn PromptFunction) PromptVersion {
	return &promptVersionImpl{fn: fn}
}

// ToPromptJSON serializes data to indented JSON for embedding in prompts,
// preserving non-ASCII characters.
func ToPromptJSON(data interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
