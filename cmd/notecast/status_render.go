package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

var episodeStatusKinds = map[string]statusKind{
	"completed":  statusOK,
	"failed":     statusError,
	"generating": statusWarn,
}

func paint(text, color string, colorize bool) string {
	if !colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

// renderStatusLine formats one "label: [KIND] message" row of `notecast status`.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	badge := "[" + statusKindLabel(kind) + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	return paint(line, statusKindColor(kind), colorize)
}

func statusKindLabel(kind statusKind) string {
	if style, ok := statusStyles[kind]; ok {
		return style.label
	}
	return statusStyles[statusInfo].label
}

func statusKindColor(kind statusKind) string {
	return statusStyles[kind].color
}

func episodeStatusKind(status string) statusKind {
	if kind, ok := episodeStatusKinds[status]; ok {
		return kind
	}
	return statusInfo
}

func colorStatus(status string, colorize bool) string {
	return paint(status, statusKindColor(episodeStatusKind(status)), colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	underline := strings.Repeat("-", len(heading))
	return []string{paint(heading, ansiBlue, colorize), paint(underline, ansiBlue, colorize)}
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
