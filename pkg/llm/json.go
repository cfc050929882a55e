package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// GenerateJSON calls the LLM until the response parses as JSON matching
// target, retrying with corrective feedback. The final attempt's output is
// run through repair before giving up. maxRetries <= 0 defaults to 2.
func GenerateJSON(ctx context.Context, client Client, messages []Message, target interface{}, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = 2
	}

	working := make([]Message, len(messages))
	copy(working, messages)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		response, err := client.Chat(ctx, working)
		if err != nil {
			lastErr = fmt.Errorf("llm call failed on attempt %d: %w", attempt+1, err)
			continue
		}
		if response == nil || response.Content == "" {
			lastErr = fmt.Errorf("empty response from llm on attempt %d", attempt+1)
			continue
		}

		raw := ExtractJSONFromResponse(response.Content)
		repaired, _ := jsonrepair.RepairJSON(raw)

		unmarshalErr := json.Unmarshal([]byte(repaired), target)
		if unmarshalErr == nil {
			return nil
		}
		lastErr = fmt.Errorf("invalid JSON on attempt %d: %w", attempt+1, unmarshalErr)

		if attempt < maxRetries {
			working = append(working, Message{Role: RoleAssistant, Content: response.Content})
			working = append(working, Message{
				Role: RoleUser,
				Content: fmt.Sprintf(
					"The response was not valid JSON matching the requested schema. Error: %v. "+
						"Return only the complete JSON object:", lastErr),
			})
		}
	}

	return fmt.Errorf("failed to generate valid JSON after %d attempts: %w", maxRetries+1, lastErr)
}

// ExtractJSONFromResponse attempts to extract JSON from LLM responses that
// may contain markdown code blocks or other surrounding text.
func ExtractJSONFromResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```json") {
		start := strings.Index(response, "```json")
		end := strings.Index(response[start+7:], "```")
		if end != -1 {
			return strings.TrimSpace(response[start+7 : start+7+end])
		}
	}

	if strings.HasPrefix(response, "```") {
		lines := strings.Split(response, "\n")
		if len(lines) > 2 {
			return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}

	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart != -1 && jsonEnd != -1 && jsonEnd > jsonStart {
		return response[jsonStart : jsonEnd+1]
	}

	jsonStart = strings.Index(response, "[")
	jsonEnd = strings.LastIndex(response, "]")
	if jsonStart != -1 && jsonEnd != -1 && jsonEnd > jsonStart {
		return response[jsonStart : jsonEnd+1]
	}

	return response
}
