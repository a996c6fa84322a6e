package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors used for terminal output.
type Theme struct {
	Primary lipgloss.Color // Header and accent color
	Dim     lipgloss.Color // Rules and secondary text
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Header lipgloss.Style
	Rule   lipgloss.Style
	Cell   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Rule:   lipgloss.NewStyle().Foreground(t.Dim),
		Cell:   lipgloss.NewStyle(),
	}
}

// PlainStyles renders tables without colors or attributes.
func PlainStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle(),
		Rule:   lipgloss.NewStyle(),
		Cell:   lipgloss.NewStyle(),
	}
}

// RenderTable renders rows under header with columns padded to the widest
// cell. Rows shorter than header are padded with empty cells.
func RenderTable(s Styles, header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	writeRow := func(style lipgloss.Style, cells []string) {
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i > 0 {
				b.WriteString("  ")
			}
			pad := widths[i] - lipgloss.Width(cell)
			if i == len(widths)-1 {
				pad = 0
			}
			b.WriteString(style.Render(cell))
			b.WriteString(strings.Repeat(" ", pad))
		}
		b.WriteByte('\n')
	}

	writeRow(s.Header, header)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("─", w)
	}
	writeRow(s.Rule, rule)
	for _, row := range rows {
		writeRow(s.Cell, row)
	}
	return b.String()
}

// TruncateString truncates s to at most width cells, handling multi-byte
// characters, and marks the cut with an ellipsis.
func TruncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	current := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if current+w > width-1 {
			return string(runes[:i]) + "…"
		}
		current += w
	}
	return s
}
