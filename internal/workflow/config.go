package workflow

import "github.com/KaramelBytes/qstorm-cli/internal/api"

const (
	// PreferredTargetColumn is chosen as the default target when present.
	PreferredTargetColumn = "Total_Sales"
	// HistogramBins is the bin count sent with every histogram request.
	HistogramBins = 20
)

// AnalysisConfig is the analysis form: which columns to chart and how.
type AnalysisConfig struct {
	TargetColumn    string          `json:"target_column"`
	HistogramColumn string          `json:"histogram_column"`
	Aggregation     api.Aggregation `json:"aggregation"`
	Store           string          `json:"store,omitempty"`
	// Period narrows the Pareto ranking to one month (YYYY-MM).
	Period   string `json:"period,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// DefaultConfig is the form before any dataset has been loaded.
func DefaultConfig() AnalysisConfig {
	return AnalysisConfig{
		TargetColumn:    PreferredTargetColumn,
		HistogramColumn: PreferredTargetColumn,
		Aggregation:     api.AggregationMonthly,
	}
}

// DeriveConfig rebuilds column defaults for a dataset. The target prefers
// Total_Sales, else the first column; the histogram column is the first
// column. Aggregation and filters carry over from prev.
func DeriveConfig(columns []string, prev AnalysisConfig) AnalysisConfig {
	out := prev
	if out.Aggregation == "" {
		out.Aggregation = api.AggregationMonthly
	}
	if len(columns) == 0 {
		return out
	}
	out.TargetColumn = columns[0]
	for _, c := range columns {
		if c == PreferredTargetColumn {
			out.TargetColumn = c
			break
		}
	}
	out.HistogramColumn = columns[0]
	return out
}

// dateRange returns the time-series date_range, or nil unless both ends are set.
func (c AnalysisConfig) dateRange() []string {
	if c.DateFrom == "" || c.DateTo == "" {
		return nil
	}
	return []string{c.DateFrom, c.DateTo}
}

func (c AnalysisConfig) histogramColumn() string {
	if c.HistogramColumn != "" {
		return c.HistogramColumn
	}
	return c.TargetColumn
}
