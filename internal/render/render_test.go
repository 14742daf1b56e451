package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	"github.com/KaramelBytes/qstorm-cli/internal/workflow"
)

func ptr(v float64) *float64 { return &v }

func TestPadStringCountsWideRunes(t *testing.T) {
	assert.Equal(t, "売上  ", PadString("売上", 6, true))
	assert.Equal(t, "  ab", PadString("ab", 4, false))
	assert.Equal(t, "toolong", PadString("toolong", 3, true))
}

func TestTableAlignsJapaneseColumns(t *testing.T) {
	tbl := &Table{Headers: []string{"NAME", "N"}, Aligns: []Align{AlignLeft, AlignRight}}
	tbl.Rows = [][]string{{"売上データ", "1"}, {"stock", "12"}}
	lines := strings.Split(strings.TrimRight(tbl.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, runewidth.StringWidth(lines[1]), runewidth.StringWidth(lines[2]))
}

func TestResultsText(t *testing.T) {
	rs := workflow.ResultSet{
		TimeSeries: &api.TimeSeriesResponse{
			Timestamp: []string{"2024-01", "2024-02"},
			Series: []api.Series{{Name: "Total_Sales", Values: []float64{10, 12.5},
				Statistics: &api.SeriesStatistics{Mean: ptr(11.25), Trend: "up"}}},
		},
		Pareto: &api.ParetoResponse{
			Data: []api.ParetoItem{
				{Category: "food", Value: 15, Metadata: &api.ParetoMetadata{DisplayName: "食品", Percentage: ptr(68.18), Cumulative: ptr(68.18)}},
				{Category: "toys", Value: 7},
			},
			Total: 22, VitalFewThreshold: 1,
		},
		Histogram: &api.HistogramResponse{Bins: []float64{0, 5, 10}, Counts: []int{4, 2},
			Fit: &api.HistogramFit{Distribution: "normal", Params: map[string]any{"sigma": 1.5, "mu": 5.0}}},
	}
	var buf bytes.Buffer
	r := &Renderer{Out: &buf, Format: FormatText, Width: 60}
	require.NoError(t, r.Results(rs))
	out := buf.String()
	assert.Contains(t, out, "Time series")
	assert.Contains(t, out, "12.50")
	assert.Contains(t, out, "Total_Sales: mean 11.25  trend up")
	assert.Contains(t, out, "*1")
	assert.Contains(t, out, "食品")
	assert.Contains(t, out, "68.2%")
	assert.Contains(t, out, "total 22")
	assert.Contains(t, out, "[0, 5)")
	assert.Contains(t, out, "fit: normal (mu=5, sigma=1.50)")
}

func TestHistogramBarsScale(t *testing.T) {
	out := HistogramView(&api.HistogramResponse{Bins: []float64{0, 1, 2}, Counts: []int{10, 5}}, 40)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	full := strings.Count(lines[0], "█")
	half := strings.Count(lines[1], "█")
	assert.Greater(t, full, 0)
	assert.InDelta(t, float64(full)/2, float64(half), 1)
}

func TestLongSeriesIsTrimmed(t *testing.T) {
	ts := &api.TimeSeriesResponse{Series: []api.Series{{Name: "v"}}}
	for i := 0; i < 30; i++ {
		ts.Timestamp = append(ts.Timestamp, "d")
		ts.Series[0].Values = append(ts.Series[0].Values, float64(i))
	}
	out := TimeSeriesView(ts)
	assert.Contains(t, out, "6 earlier periods")
	assert.Contains(t, out, "29")
}

func TestEmptyResultsAndJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, "text").Results(workflow.ResultSet{}))
	assert.Contains(t, buf.String(), "No analysis results yet.")

	buf.Reset()
	require.NoError(t, New(&buf, "JSON").Catalog([]api.Dataset{{ID: "7", Name: "sales"}}, "7"))
	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "sales", got[0]["name"])
}

func TestCatalogMarksActive(t *testing.T) {
	out := CatalogView([]api.Dataset{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}, "2")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.False(t, strings.HasPrefix(lines[1], IconActive))
	assert.True(t, strings.HasPrefix(lines[2], IconActive))
}
