package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty model response")

// StripCodeFences removes a surrounding markdown code block, if present.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if endIdx <= 1 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// DecodeJSON parses a model reply into v. Code fences are stripped and, when
// the reply wraps the JSON in prose, the outermost object or array is used.
func DecodeJSON(text string, v any) error {
	text = StripCodeFences(text)
	if text == "" {
		return ErrEmptyResponse
	}

	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}

	if inner := extractJSON(text); inner != "" && inner != text {
		if err2 := json.Unmarshal([]byte(inner), v); err2 == nil {
			return nil
		}
	}
	return fmt.Errorf("parsing model response as JSON: %w", err)
}

func extractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}
