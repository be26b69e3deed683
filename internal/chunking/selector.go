package chunking

import (
	"fmt"
	"strings"
	"unicode"

	"notecast/internal/services"
	"notecast/internal/textutil"
)

const (
	// MaxChunksLimit bounds both the chunk count and the minimum size in units.
	MaxChunksLimit = 10
	// DefaultUnitChars is the number of characters in one size unit.
	DefaultUnitChars = 600
)

// Selector splits corpora into chunks. The minimum chunk size passed to Select
// is measured in units of unitChars characters.
type Selector struct {
	unitChars int
}

// NewSelector returns a Selector using unitChars per size unit. Non-positive
// values fall back to DefaultUnitChars.
func NewSelector(unitChars int) *Selector {
	if unitChars <= 0 {
		unitChars = DefaultUnitChars
	}
	return &Selector{unitChars: unitChars}
}

// UnitChars reports the characters per size unit.
func (s *Selector) UnitChars() int {
	return s.unitChars
}

// Select joins the non-blank blocks in order and cuts the result into at most
// maxChunks chunks of at least minChunkSize units each; the final chunk holds
// the remainder and may be shorter.
func (s *Selector) Select(blocks []string, maxChunks, minChunkSize int) ([]string, error) {
	if maxChunks < 1 || maxChunks > MaxChunksLimit {
		return nil, services.Wrap(services.ErrValidation, "chunking", "select",
			fmt.Sprintf("max chunks %d outside 1-%d", maxChunks, MaxChunksLimit), nil)
	}
	if minChunkSize < 1 || minChunkSize > MaxChunksLimit {
		return nil, services.Wrap(services.ErrValidation, "chunking", "select",
			fmt.Sprintf("min chunk size %d outside 1-%d", minChunkSize, MaxChunksLimit), nil)
	}

	text := joinBlocks(blocks)
	if text == "" {
		return nil, services.Wrap(services.ErrChunking, "chunking", "select", "corpus is empty", nil)
	}

	runes := []rune(text)
	total := len(runes)
	minRunes := minChunkSize * s.unitChars
	target := (total + maxChunks - 1) / maxChunks
	if target < minRunes {
		target = minRunes
	}

	chunks := make([]string, 0, maxChunks)
	start := 0
	for len(chunks) < maxChunks-1 && total-start > target {
		cut := cutPoint(runes, start, start+minRunes, start+target)
		chunks = append(chunks, string(runes[start:cut]))
		start = skipSpace(runes, cut)
	}
	if start < total {
		chunks = append(chunks, strings.TrimRightFunc(string(runes[start:]), unicode.IsSpace))
	}
	return chunks, nil
}

func joinBlocks(blocks []string) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if normalized := textutil.NormalizeText(block); normalized != "" {
			parts = append(parts, normalized)
		}
	}
	return strings.Join(parts, "\n\n")
}

// cutPoint returns the end of a chunk starting at start: the last word
// boundary in [lo, hi], or hi when the window holds none. start is never
// whitespace, so a boundary cut yields a chunk with no surrounding space.
func cutPoint(runes []rune, start, lo, hi int) int {
	if hi > len(runes) {
		hi = len(runes)
	}
	if lo <= start {
		lo = start + 1
	}
	for i := hi; i >= lo; i-- {
		if i < len(runes) && unicode.IsSpace(runes[i]) && !unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return hi
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}
