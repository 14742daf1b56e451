// Package render prints catalogs, sessions and analysis results to the
// terminal as styled text or JSON.
package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Palette
var (
	ColorAccent  = lipgloss.Color("#4AA8FF")
	ColorBar     = lipgloss.Color("#2E86DE")
	ColorVital   = lipgloss.Color("#F39C12")
	ColorSuccess = lipgloss.Color("#27AE60")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#7F8C8D")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Bar      lipgloss.Style
	Vital    lipgloss.Style
	Box      lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Header:   lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
	Selected: lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),
	Bar:      lipgloss.NewStyle().Foreground(ColorBar),
	Vital:    lipgloss.NewStyle().Foreground(ColorVital),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Padding(0, 1),
}

// Icons
const (
	IconSuccess = "✓"
	IconWarning = "⚠"
	IconError   = "✗"
	IconActive  = "▶"
)

// PadString pads s to a display width, counting wide (CJK) runes as two cells.
func PadString(s string, width int, leftAlign bool) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	pad := strings.Repeat(" ", width-w)
	if leftAlign {
		return s + pad
	}
	return pad + s
}

// Truncate shortens s to at most width cells.
func Truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

// TermWidth returns the stdout terminal width, or 80 when unknown.
func TermWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w < 40 {
		return 80
	}
	return w
}
