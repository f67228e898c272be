// Package ascii provides box-drawing helpers for command summaries.
package ascii

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	cornerTL = "┌"
	cornerTR = "┐"
	cornerBL = "└"
	cornerBR = "┘"
	edgeH    = "─"
	edgeV    = "│"
)

// Box renders lines inside a single-line border and returns the result,
// newline-terminated. Display width is measured per rune so that wide runes
// (emoji, CJK) keep the borders aligned.
func Box(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	content := maxWidth(lines)
	horizontal := strings.Repeat(edgeH, content+2)

	var sb strings.Builder
	sb.WriteString(cornerTL + horizontal + cornerTR + "\n")
	for _, line := range lines {
		sb.WriteString(edgeV + " " + padRight(strings.TrimRight(line, " "), content) + " " + edgeV + "\n")
	}
	sb.WriteString(cornerBL + horizontal + cornerBR + "\n")
	return sb.String()
}

// DrawBox prints Box(lines) to stdout.
func DrawBox(lines []string) {
	fmt.Print(Box(lines))
}

// TruncateForBox shortens value to the given display width, appending "..."
// when something was cut and the width leaves room for it.
func TruncateForBox(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return clipToWidth(value, width)
	}
	return clipToWidth(value, width-3) + "..."
}

func maxWidth(lines []string) int {
	widest := 0
	for _, line := range lines {
		if w := runewidth.StringWidth(strings.TrimRight(line, " ")); w > widest {
			widest = w
		}
	}
	return widest
}

func padRight(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

func clipToWidth(s string, target int) string {
	used := 0
	for i, r := range s {
		w := runewidth.RuneWidth(r)
		if used+w > target {
			return s[:i]
		}
		used += w
	}
	return s
}
