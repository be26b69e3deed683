package textutil

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// TitleFromFileName derives a display title from a file path: the extension is
// dropped, separators become spaces, and words are title-cased.
func TitleFromFileName(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.':
			return ' '
		}
		return r
	}, base)
	return titleCaser.String(CollapseWhitespace(base))
}

// FirstLine returns the first non-empty line of text, shortened to limit runes.
func FirstLine(text string, limit int) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			short, _ := TruncateAtWord(line, limit)
			return short
		}
	}
	return ""
}
