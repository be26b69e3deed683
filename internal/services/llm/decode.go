package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"notecast/internal/textutil"
)

const snippetRunes = 160

// DecodeLLMJSON unmarshals a model reply into target. Replies wrapped in a
// markdown fence or surrounded by prose are unwrapped before a second attempt.
func DecodeLLMJSON(content string, target any) error {
	raw := strings.TrimSpace(content)
	if raw == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(raw), target)
	if err == nil {
		return nil
	}
	inner := extractJSON(raw)
	if inner == "" || inner == raw {
		return fmt.Errorf("%w (payload snippet: %s)", err, payloadSnippet(raw))
	}
	if err := json.Unmarshal([]byte(inner), target); err != nil {
		return fmt.Errorf("%w (extracted payload snippet: %s)", err, payloadSnippet(inner))
	}
	return nil
}

// extractJSON returns the outermost object or array found in text after any
// code fence is removed.
func extractJSON(text string) string {
	body := unfence(text)
	if body == "" || body[0] == '{' || body[0] == '[' {
		return body
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(body, pair[0])
		end := strings.LastIndex(body, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(body[start : end+1])
		}
	}
	return body
}

func unfence(text string) string {
	body, ok := strings.CutPrefix(strings.TrimSpace(text), "```")
	if !ok {
		return strings.TrimSpace(text)
	}
	body = strings.TrimSpace(body)
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func payloadSnippet(text string) string {
	flat := textutil.CollapseWhitespace(text)
	if flat == "" {
		return "<empty>"
	}
	if short, cut := textutil.TruncateAtWord(flat, snippetRunes); cut {
		return short + "..."
	}
	return flat
}
