package podcast

import (
	"fmt"
	"regexp"
	"strings"

	"notecast/internal/services"
	"notecast/internal/services/llm"
	"notecast/internal/store"
)

// Persona identifies one of the two speakers.
type Persona int

const (
	Persona1 Persona = 1
	Persona2 Persona = 2
)

// ParsePersona accepts "Person1", "person 2", "speaker1", "1", and similar.
func ParsePersona(value string) (Persona, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, prefix := range []string{"persona", "person", "speaker", "host"} {
		normalized = strings.TrimPrefix(normalized, prefix)
	}
	switch strings.TrimSpace(strings.Trim(normalized, "_- ")) {
	case "1", "one":
		return Persona1, nil
	case "2", "two":
		return Persona2, nil
	}
	return 0, fmt.Errorf("unknown persona %q", value)
}

// Voice returns the persona's voice from the template.
func (p Persona) Voice(tpl store.EpisodeTemplate) string {
	switch p {
	case Persona1:
		return tpl.Voice1
	case Persona2:
		return tpl.Voice2
	}
	return ""
}

func (p Persona) String() string {
	switch p {
	case Persona1:
		return "Person1"
	case Persona2:
		return "Person2"
	}
	return fmt.Sprintf("Persona(%d)", int(p))
}

// Turn is one line of dialogue.
type Turn struct {
	Persona Persona
	Text    string
}

type scriptPayload struct {
	Transcript []scriptLine `json:"transcript"`
}

type scriptLine struct {
	Speaker  string `json:"speaker"`
	Dialogue string `json:"dialogue"`
}

var taggedTurn = regexp.MustCompile(`(?is)<\s*person\s*([12])\s*>(.*?)<\s*/\s*person\s*[12]\s*>`)

// ParseScript extracts dialogue turns from a generation result. A JSON
// {"transcript": [...]} object (or bare array) is preferred; a transcript of
// <Person1>...</Person1> tags is accepted as a fallback. Lines with an
// unknown speaker or blank text are dropped.
func ParseScript(raw string) ([]Turn, error) {
	if turns := parseJSONScript(raw); len(turns) > 0 {
		return turns, nil
	}
	if turns := parseTaggedScript(raw); len(turns) > 0 {
		return turns, nil
	}
	return nil, services.Wrap(services.ErrProvider, "podcast", "parse script", "no dialogue turns in generated script", nil)
}

func parseJSONScript(raw string) []Turn {
	var payload scriptPayload
	if err := llm.DecodeLLMJSON(raw, &payload); err != nil || len(payload.Transcript) == 0 {
		var lines []scriptLine
		if err := llm.DecodeLLMJSON(raw, &lines); err != nil {
			return nil
		}
		payload.Transcript = lines
	}
	turns := make([]Turn, 0, len(payload.Transcript))
	for _, line := range payload.Transcript {
		persona, err := ParsePersona(line.Speaker)
		if err != nil {
			continue
		}
		if text := cleanDialogue(line.Dialogue); text != "" {
			turns = append(turns, Turn{Persona: persona, Text: text})
		}
	}
	return turns
}

func parseTaggedScript(raw string) []Turn {
	matches := taggedTurn.FindAllStringSubmatch(raw, -1)
	turns := make([]Turn, 0, len(matches))
	for _, m := range matches {
		persona, err := ParsePersona(m[1])
		if err != nil {
			continue
		}
		if text := cleanDialogue(m[2]); text != "" {
			turns = append(turns, Turn{Persona: persona, Text: text})
		}
	}
	return turns
}

func cleanDialogue(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
