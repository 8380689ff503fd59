package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is one labelled line of a key/value listing.
type Field struct {
	Label string
	Value string
}

// RenderFields lays fields out as aligned "label  value" lines. Values
// longer than maxValue runes are truncated with an ellipsis; maxValue <= 0
// disables truncation.
func RenderFields(fields []Field, maxValue int) string {
	width := 0
	for _, f := range fields {
		if w := lipgloss.Width(f.Label); w > width {
			width = w
		}
	}
	label := LabelStyle.Width(width)

	var b strings.Builder
	for _, f := range fields {
		b.WriteString(label.Render(f.Label))
		b.WriteString("  ")
		b.WriteString(Truncate(f.Value, maxValue))
		b.WriteByte('\n')
	}
	return b.String()
}

// Truncate shortens s to at most max runes, ending in "…" when cut.
func Truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
