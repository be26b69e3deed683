package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes an episode or source name usable as a file name.
// Path separators, colons and asterisks become dashes; quotes, wildcards,
// redirection characters and control characters are dropped.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*`, r):
			return '-'
		case strings.ContainsRune(`?"<>|`, r), unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	return CollapseWhitespace(cleaned)
}
