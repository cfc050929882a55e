package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return nil, errors.New("script exhausted")
	}
	return &Response{Content: s.responses[i]}, nil
}

func (s *scriptedClient) Close() error { return nil }

func TestExtractJSONFromResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`},
		{"markdown fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding prose", `Here you go: {"a": 1} hope that helps`, `{"a": 1}`},
		{"array", `result: [1, 2]`, `[1, 2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONFromResponse(tt.input))
		})
	}
}

func TestGenerateJSONRetries(t *testing.T) {
	client := &scriptedClient{responses: []string{"not json at all", `{"name": "Aria"}`}}

	var out map[string]any
	err := GenerateJSON(context.Background(), client, []Message{NewUserMessage("go")}, &out, 2)
	require.NoError(t, err)
	assert.Equal(t, "Aria", out["name"])
	assert.Equal(t, 2, client.calls)
}

func TestGenerateJSONRepairsTrailingComma(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"name": "Aria", "role": "supporting",}`}}

	var out map[string]any
	err := GenerateJSON(context.Background(), client, []Message{NewUserMessage("go")}, &out, 1)
	require.NoError(t, err)
	assert.Equal(t, "supporting", out["role"])
}

func TestGenerateJSONExhausted(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}

	var out map[string]any
	err := GenerateJSON(context.Background(), client, []Message{NewUserMessage("go")}, &out, 2)
	assert.Error(t, err)
}
