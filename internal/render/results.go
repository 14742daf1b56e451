package render

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	"github.com/KaramelBytes/qstorm-cli/internal/utils"
	"github.com/KaramelBytes/qstorm-cli/internal/workflow"
)

// maxSeriesRows caps the time-series table; earlier rows are summarised.
const maxSeriesRows = 24

// Format selects text or JSON output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Renderer writes command output.
type Renderer struct {
	Out    io.Writer
	Format Format
	// Width bounds bar charts; 0 uses the terminal width.
	Width int
}

// New returns a Renderer for out in the given format ("json" or text).
func New(out io.Writer, format string) *Renderer {
	f := FormatText
	if strings.EqualFold(format, string(FormatJSON)) {
		f = FormatJSON
	}
	return &Renderer{Out: out, Format: f}
}

func (r *Renderer) width() int {
	if r.Width > 0 {
		return r.Width
	}
	return TermWidth()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.Out, string(b))
	return err
}

func (r *Renderer) text(s string) error {
	_, err := io.WriteString(r.Out, s)
	return err
}

// Catalog prints the datasets of a session, marking the active one.
func (r *Renderer) Catalog(list []api.Dataset, active api.ID) error {
	if r.Format == FormatJSON {
		return r.JSON(list)
	}
	return r.text(CatalogView(list, active))
}

// CatalogView renders a dataset list.
func CatalogView(list []api.Dataset, active api.ID) string {
	if len(list) == 0 {
		return Styles.Muted.Render("No datasets in this session.") + "\n"
	}
	t := &Table{Headers: []string{"", "ID", "NAME", "CREATED"}, Aligns: []Align{AlignLeft, AlignRight}, MaxCell: 48}
	for _, d := range list {
		mark := ""
		if d.ID == active {
			mark = IconActive
		}
		t.Rows = append(t.Rows, []string{mark, d.ID.String(), d.Name, d.CreatedAt.String()})
	}
	return t.String()
}

// Sessions prints the user's sessions, marking the active one.
func (r *Renderer) Sessions(list []api.SessionInfo, active api.ID) error {
	if r.Format == FormatJSON {
		return r.JSON(list)
	}
	if len(list) == 0 {
		return r.text(Styles.Muted.Render("No sessions.") + "\n")
	}
	t := &Table{Headers: []string{"", "ID", "CREATED", "EXPIRES"}, Aligns: []Align{AlignLeft, AlignRight}}
	for _, s := range list {
		mark := ""
		if s.ID == active {
			mark = IconActive
		}
		t.Rows = append(t.Rows, []string{mark, s.ID.String(), s.CreatedAt.String(), s.ExpiresAt.String()})
	}
	return r.text(t.String())
}

// Upload prints the outcome of an upload with its preview rows.
func (r *Renderer) Upload(res *api.UploadResult) error {
	if r.Format == FormatJSON {
		return r.JSON(res)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s Uploaded dataset %s to session %s (%d rows)\n",
		Styles.Success.Render(IconSuccess), res.DatasetID, res.SessionID, res.Rows)
	fmt.Fprintf(&b, "  Columns: %s\n", strings.Join(res.Columns, ", "))
	if len(res.Preview) > 0 {
		t := &Table{Headers: res.Columns, MaxCell: 20}
		for _, row := range res.Preview {
			cells := make([]string, len(res.Columns))
			for i, c := range res.Columns {
				cells[i] = formatCell(row[c])
			}
			t.Rows = append(t.Rows, cells)
		}
		b.WriteString("\n")
		b.WriteString(t.String())
	}
	return r.text(b.String())
}

// Results prints every populated result slot.
func (r *Renderer) Results(rs workflow.ResultSet) error {
	if r.Format == FormatJSON {
		return r.JSON(rs)
	}
	if rs.Empty() {
		return r.text(Styles.Muted.Render("No analysis results yet.") + "\n")
	}
	var parts []string
	if rs.TimeSeries != nil {
		parts = append(parts, Styles.Title.Render("Time series")+"\n"+TimeSeriesView(rs.TimeSeries))
	}
	if rs.Pareto != nil {
		parts = append(parts, Styles.Title.Render("Pareto")+"\n"+ParetoView(rs.Pareto))
	}
	if rs.Histogram != nil {
		parts = append(parts, Styles.Title.Render("Histogram")+"\n"+HistogramView(rs.Histogram, r.width()))
	}
	return r.text(strings.Join(parts, "\n"))
}

// TimeSeriesView renders series values against the shared time axis,
// followed by per-series statistics.
func TimeSeriesView(ts *api.TimeSeriesResponse) string {
	if len(ts.Timestamp) == 0 {
		return Styles.Muted.Render("(no points)") + "\n"
	}
	headers := []string{"PERIOD"}
	aligns := []Align{AlignLeft}
	for _, s := range ts.Series {
		headers = append(headers, s.Name)
		aligns = append(aligns, AlignRight)
	}
	t := &Table{Headers: headers, Aligns: aligns}
	start := 0
	if len(ts.Timestamp) > maxSeriesRows {
		start = len(ts.Timestamp) - maxSeriesRows
	}
	for i := start; i < len(ts.Timestamp); i++ {
		row := []string{ts.Timestamp[i]}
		for _, s := range ts.Series {
			v := ""
			if i < len(s.Values) {
				v = formatNumber(s.Values[i])
			}
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	var b strings.Builder
	if start > 0 {
		b.WriteString(Styles.Muted.Render(fmt.Sprintf("… %d earlier periods", start)) + "\n")
	}
	b.WriteString(t.String())
	for _, s := range ts.Series {
		if s.Statistics == nil {
			continue
		}
		st := s.Statistics
		var fields []string
		for _, f := range []struct {
			name string
			v    *float64
		}{{"mean", st.Mean}, {"std", st.Std}, {"min", st.Min}, {"max", st.Max}} {
			if f.v != nil {
				fields = append(fields, f.name+" "+formatNumber(*f.v))
			}
		}
		if st.Trend != "" {
			fields = append(fields, "trend "+st.Trend)
		}
		if len(fields) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", s.Name, strings.Join(fields, "  "))
		}
	}
	return b.String()
}

// ParetoView renders the ranked categories; the vital few are highlighted.
func ParetoView(p *api.ParetoResponse) string {
	if len(p.Data) == 0 {
		return Styles.Muted.Render("(no categories)") + "\n"
	}
	t := &Table{
		Headers: []string{"#", "CATEGORY", "VALUE", "SHARE", "CUMULATIVE"},
		Aligns:  []Align{AlignRight, AlignLeft, AlignRight, AlignRight, AlignRight},
		MaxCell: 32,
	}
	for i, item := range p.Data {
		share, cum := "", ""
		if item.Metadata != nil {
			if item.Metadata.Percentage != nil {
				share = formatPercent(*item.Metadata.Percentage)
			}
			if item.Metadata.Cumulative != nil {
				cum = formatPercent(*item.Metadata.Cumulative)
			}
		}
		rank := strconv.Itoa(i + 1)
		if i < p.VitalFewThreshold {
			rank = "*" + rank
		}
		t.Rows = append(t.Rows, []string{rank, item.Label(), formatNumber(item.Value), share, cum})
	}
	var b strings.Builder
	b.WriteString(t.String())
	fmt.Fprintf(&b, "total %s", formatNumber(p.Total))
	if p.VitalFewThreshold > 0 {
		b.WriteString("  " + Styles.Vital.Render(fmt.Sprintf("vital few: top %d (*)", p.VitalFewThreshold)))
	}
	b.WriteString("\n")
	return b.String()
}

// HistogramView renders bins as horizontal bars scaled to width.
func HistogramView(h *api.HistogramResponse, width int) string {
	if len(h.Counts) == 0 {
		return Styles.Muted.Render("(no bins)") + "\n"
	}
	labels := make([]string, len(h.Counts))
	labelW, maxCount := 0, 0
	for i, c := range h.Counts {
		if i+1 < len(h.Bins) {
			labels[i] = fmt.Sprintf("[%s, %s)", formatNumber(h.Bins[i]), formatNumber(h.Bins[i+1]))
		} else {
			labels[i] = fmt.Sprintf("bin %d", i+1)
		}
		labelW = max(labelW, runewidth.StringWidth(labels[i]))
		maxCount = max(maxCount, c)
	}
	countW := len(strconv.Itoa(maxCount))
	barMax := width - labelW - countW - 4
	if barMax < 10 {
		barMax = 10
	}
	var b strings.Builder
	for i, c := range h.Counts {
		n := 0
		if maxCount > 0 {
			n = int(math.Round(float64(c) / float64(maxCount) * float64(barMax)))
		}
		bar := Styles.Bar.Render(strings.Repeat("█", n))
		fmt.Fprintf(&b, "%s  %s %s\n", PadString(labels[i], labelW, true), PadString(strconv.Itoa(c), countW, false), bar)
	}
	if h.Fit != nil && h.Fit.Distribution != "" {
		keys := make([]string, 0, len(h.Fit.Params))
		for k := range h.Fit.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		params := make([]string, len(keys))
		for i, k := range keys {
			params[i] = k + "=" + formatCell(h.Fit.Params[k])
		}
		fmt.Fprintf(&b, "fit: %s", h.Fit.Distribution)
		if len(params) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(params, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPercent(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" }

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatNumber(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
