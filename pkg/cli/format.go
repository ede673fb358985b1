// Package cli provides shared formatting helpers for the snowcap command
// line tools: ANSI coloring and a terminal-width-aware table, plus a few
// snowcap-specific renderers for migration steps and policy verdicts.
package cli

import (
	"strconv"
	"strings"
)

// ANSI color helpers.

func Green(s string) string  { return "\033[32m" + s + "\033[0m" }
func Yellow(s string) string { return "\033[33m" + s + "\033[0m" }
func Red(s string) string    { return "\033[31m" + s + "\033[0m" }
func Bold(s string) string   { return "\033[1m" + s + "\033[0m" }
func Dim(s string) string    { return "\033[2m" + s + "\033[0m" }

// DotPad pads name with dots to the given width.
// Example: DotPad("r1-r2-session", 30) → "r1-r2-session ................"
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}

// VerdictColor colors a hard-policy verdict string: "safe" green,
// "violated" red, anything else (e.g. "unknown") yellow.
func VerdictColor(verdict string) string {
	switch verdict {
	case "safe":
		return Green(verdict)
	case "violated":
		return Red(verdict)
	default:
		return Yellow(verdict)
	}
}

// AttemptSummary renders a one-line "N/M attempts" summary for a synthesis
// run, colored green when it found a plan on or before the first attempt
// and yellow otherwise — a quick visual signal of how hard the search had
// to work.
func AttemptSummary(used, budget int) string {
	line := DotPad("attempts", 12) + " " + strconv.Itoa(used) + "/" + strconv.Itoa(budget)
	if used <= 1 {
		return Green(line)
	}
	return Yellow(line)
}
