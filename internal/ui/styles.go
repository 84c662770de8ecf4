// Package ui renders CLI output: colors, tables and trees.
package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // medium gray
	colorRed    = 203
	colorYellow = 221
	colorGreen  = 114
	colorOrange = 209
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderBold returns s in bold.
func RenderBold(s string) string {
	if noColor {
		return s
	}
	return "\x1b[1m" + s + "\x1b[0m"
}

// RenderPriority colors a priority label: CRITICAL red, HIGH yellow,
// everything else muted.
func RenderPriority(p string) string {
	switch strings.ToUpper(p) {
	case "CRITICAL":
		return paint(colorRed, p)
	case "HIGH":
		return paint(colorYellow, p)
	default:
		return paint(colorMuted, p)
	}
}

// RenderStatus colors a node status.
func RenderStatus(s string) string {
	switch s {
	case "completed":
		return paint(colorGreen, s)
	case "in_progress":
		return paint(colorAccent, s)
	case "blocked":
		return paint(colorOrange, s)
	case "not_applicable":
		return paint(colorMuted, s)
	default:
		return s
	}
}

// Checkbox renders a completion marker.
func Checkbox(done bool) string {
	if done {
		return paint(colorGreen, "[x]")
	}
	return "[ ]"
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// visibleLen is the rune width of s without ANSI escapes.
func visibleLen(s string) int {
	n := 0
	for i := 0; i < len(s); {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			i++
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n++
	}
	return n
}

// Truncate shortens s to at most n runes, ending in "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
