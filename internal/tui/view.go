package tui

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/qstorm-cli/internal/render"
	"github.com/KaramelBytes/qstorm-cli/internal/workflow"
)

const helpBrowse = "u upload · r run · tab dataset · e rename · t/h columns · a aggregation · / store · p period · s sessions · c refresh · q quit"

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	body := m.body()
	if m.ready {
		body = m.viewport.View()
	}
	return m.header() + "\n" + body + "\n" + m.footer()
}

func (m Model) header() string {
	st := m.ctrl.Snapshot()
	var b strings.Builder
	b.WriteString(render.Styles.Title.Render("Q-Storm"))
	if st.HasActive {
		fmt.Fprintf(&b, "  session %s (%s)", st.Active.ID, st.Active.Provenance)
	} else {
		b.WriteString(render.Styles.Muted.Render("  no session, upload a file to start"))
	}
	if ds, ok := st.Dataset(); ok {
		fmt.Fprintf(&b, "  dataset %s", ds.Name)
	} else if !st.DatasetID.IsZero() {
		fmt.Fprintf(&b, "  dataset %s", st.DatasetID)
	}
	if m.busy > 0 || st.Loading {
		b.WriteString("  " + m.spinner.View())
	}
	return b.String()
}

func (m Model) footer() string {
	switch m.mode {
	case ModeBrowse:
	case ModeSessions:
		return render.Styles.Muted.Render("↑/↓ choose · enter switch · esc back")
	default:
		return m.input.View() + render.Styles.Muted.Render("  enter submit · esc cancel")
	}
	var b strings.Builder
	if m.notice != "" {
		style := render.Styles.Success
		if m.noticeIsErr {
			style = render.Styles.Error
		}
		b.WriteString(style.Render(m.notice) + "\n")
	}
	b.WriteString(render.Styles.Muted.Render(render.Truncate(helpBrowse, max(m.width, 40))))
	return b.String()
}

func sectionError(st workflow.State, s workflow.Section) string {
	msg := st.Errors[s]
	if msg == "" {
		return ""
	}
	return render.Styles.Error.Render(render.IconError+" "+msg) + "\n"
}

func (m Model) body() string {
	st := m.ctrl.Snapshot()
	width := m.width
	if width <= 0 {
		width = 80
	}
	var b strings.Builder
	b.WriteString(sectionError(st, workflow.SectionUpload))

	if m.mode == ModeSessions {
		b.WriteString(render.Styles.Header.Render("Sessions") + "\n")
		if len(m.sessions) == 0 {
			b.WriteString(render.Styles.Muted.Render("No sessions.") + "\n")
		}
		for i, s := range m.sessions {
			line := s.ID.String()
			if s.CreatedAt.String() != "" {
				line += "  " + s.CreatedAt.String()
			}
			if s.ID == st.Active.ID {
				line += " " + render.IconActive
			}
			if i == m.sessionIdx {
				line = render.Styles.Selected.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(render.Styles.Header.Render("Datasets") + "\n")
	b.WriteString(sectionError(st, workflow.SectionCatalog))
	if st.HasActive {
		b.WriteString(render.CatalogView(st.Catalog, st.DatasetID))
	}
	for _, a := range st.Submitting {
		fmt.Fprintf(&b, "%s saving %s as %q\n", m.spinner.View(), a.DatasetID, a.Proposed)
	}
	if st.Editing != nil && m.mode != ModeRename {
		fmt.Fprintf(&b, "%s unsaved rename of %s: %q\n", render.Styles.Warning.Render(render.IconWarning), st.Editing.DatasetID, st.Editing.Proposed)
	}
	b.WriteString(sectionError(st, workflow.SectionRename))

	cfg := st.Config
	b.WriteString("\n" + render.Styles.Header.Render("Analysis") + "\n")
	fmt.Fprintf(&b, "target %s · histogram %s · %s", orDash(cfg.TargetColumn), orDash(cfg.HistogramColumn), cfg.Aggregation)
	if cfg.Store != "" {
		fmt.Fprintf(&b, " · store %s", cfg.Store)
	}
	if cfg.Period != "" {
		fmt.Fprintf(&b, " · period %s", cfg.Period)
	}
	b.WriteString("\n")
	b.WriteString(sectionError(st, workflow.SectionAnalysis))

	rs := st.Results
	if rs.Empty() {
		b.WriteString(render.Styles.Muted.Render("No analysis results yet.") + "\n")
		return b.String()
	}
	if rs.TimeSeries != nil {
		b.WriteString("\n" + render.Styles.Title.Render("Time series") + "\n" + render.TimeSeriesView(rs.TimeSeries))
	}
	if rs.Pareto != nil {
		b.WriteString("\n" + render.Styles.Title.Render("Pareto") + "\n" + render.ParetoView(rs.Pareto))
	}
	if rs.Histogram != nil {
		b.WriteString("\n" + render.Styles.Title.Render("Histogram") + "\n" + render.HistogramView(rs.Histogram, width))
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
