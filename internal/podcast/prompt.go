package podcast

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"notecast/internal/config"
	"notecast/internal/store"
)

// wordsPerMinute approximates conversational speech for sizing scripts.
const wordsPerMinute = 150

const systemPromptText = `You are writing the script for "{{ .Template.PodcastName }}"{{ with .Template.Tagline }}, {{ . }}{{ end }}.
The episode is titled "{{ .EpisodeName }}" and is a conversation between two hosts, Person1 and Person2.
Write the whole script in {{ .Template.Language }}.

Person1 roles: {{ join .Template.Person1Roles }}.
Person2 roles: {{ join .Template.Person2Roles }}.
{{- with .Template.ConversationStyle }}
Conversation style: {{ join . }}.
{{- end }}
{{- with .Template.EngagementTechniques }}
Engagement techniques: {{ join . }}.
{{- end }}
{{- with .Template.DialogueStructure }}
Follow this structure: {{ join . }}.
{{- end }}

Aim for roughly {{ .MinWords }} to {{ .MaxWords }} words of dialogue in total.
Do not write the closing farewell; it is added separately.
{{- with .Template.EndingMessage }}
The episode will close with: "{{ . }}". Let the final lines lead naturally into it.
{{- end }}

Respond with a JSON object of the form
{"transcript": [{"speaker": "Person1", "dialogue": "..."}, {"speaker": "Person2", "dialogue": "..."}]}
and nothing else.`

const userPromptText = `{{ with .Instructions }}Instructions from the producer: {{ . }}

{{ end }}Source material, in order:
{{ range $i, $chunk := .Chunks }}
<chunk index="{{ inc $i }}">
{{ $chunk }}
</chunk>
{{ end }}`

var promptFuncs = template.FuncMap{
	"join": func(values []string) string { return strings.Join(values, ", ") },
	"inc":  func(i int) int { return i + 1 },
}

var (
	systemPrompt = template.Must(template.New("system").Funcs(promptFuncs).Parse(systemPromptText))
	userPrompt   = template.Must(template.New("user").Funcs(promptFuncs).Parse(userPromptText))
)

type promptData struct {
	EpisodeName  string
	Template     store.EpisodeTemplate
	Instructions string
	Chunks       []string
	MinWords     int
	MaxWords     int
}

func buildPrompts(ep *store.Episode, profile config.LengthProfile, chunks []string) (string, string, error) {
	data := promptData{
		EpisodeName:  ep.Name,
		Template:     ep.Template,
		Instructions: strings.TrimSpace(ep.Instructions),
		Chunks:       chunks,
		MinWords:     profile.MinMinutes * wordsPerMinute,
		MaxWords:     profile.MaxMinutes * wordsPerMinute,
	}
	if data.Template.Language == "" {
		data.Template.Language = "English"
	}
	var system, user bytes.Buffer
	if err := systemPrompt.Execute(&system, data); err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	if err := userPrompt.Execute(&user, data); err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return strings.TrimSpace(system.String()), strings.TrimSpace(user.String()), nil
}
