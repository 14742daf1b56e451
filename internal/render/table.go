package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Align of a table column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Table is a plain column layout with width-aware padding.
type Table struct {
	Headers []string
	Aligns  []Align
	Rows    [][]string
	// MaxCell caps any cell's width; 0 means no cap.
	MaxCell int
}

func (t *Table) align(i int) Align {
	if i < len(t.Aligns) {
		return t.Aligns[i]
	}
	return AlignLeft
}

// String renders the table with a styled header row.
func (t *Table) String() string {
	widths := make([]int, len(t.Headers))
	cell := func(s string) string {
		if t.MaxCell > 0 {
			return Truncate(s, t.MaxCell)
		}
		return s
	}
	for i, h := range t.Headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, r := range t.Rows {
		for i := range widths {
			if i < len(r) {
				if w := runewidth.StringWidth(cell(r[i])); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	var b strings.Builder
	line := func(cells []string, header bool) {
		parts := make([]string, len(widths))
		for i := range widths {
			v := ""
			if i < len(cells) {
				v = cell(cells[i])
			}
			p := PadString(v, widths[i], t.align(i) == AlignLeft)
			if header {
				p = Styles.Header.Render(p)
			}
			parts[i] = p
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}
	line(t.Headers, true)
	for _, r := range t.Rows {
		line(r, false)
	}
	return b.String()
}
