package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText canonicalizes raw source text: Unicode NFC, LF line endings,
// runs of horizontal whitespace collapsed to one space, trailing spaces
// stripped, and at most one blank line between paragraphs.
func NormalizeText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	text := norm.NFC.String(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.Join(strings.FieldsFunc(line, isHorizontalSpace), " ")
		if line == "" {
			blank++
			continue
		}
		if blank > 0 && len(out) > 0 {
			out = append(out, "")
		}
		blank = 0
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// CollapseWhitespace replaces every whitespace run (including newlines) with a
// single space and trims the ends.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// TruncateAtWord shortens text to at most limit runes, cutting at the last
// whitespace inside the limit when one exists. limit <= 0 disables truncation.
func TruncateAtWord(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	cut := limit
	for i := limit; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace), true
}

func isHorizontalSpace(r rune) bool {
	return r != '\n' && unicode.IsSpace(r)
}
