package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a server identifier. The backend emits session and dataset ids
// both as JSON strings ("12") and as numbers (12) depending on the endpoint,
// so ID accepts either and keeps the canonical text form.
type ID string

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

func (id ID) String() string { return string(id) }

// Int returns the numeric form when the id is numeric.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as JSON numbers; the analysis endpoints
// declare session_id/dataset_id as integers.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, ok := id.Int(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

// Timestamp tolerates the naive ISO timestamps the backend produces
// (no zone offset) alongside RFC 3339.
type Timestamp struct {
	time.Time
	Raw string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	t.Raw = s
	t.Time = time.Time{}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			break
		}
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Raw != "" {
		return json.Marshal(t.Raw)
	}
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// String renders the timestamp for display, falling back to the raw text.
func (t Timestamp) String() string {
	if !t.Time.IsZero() {
		return t.Time.Format("2006-01-02 15:04")
	}
	return t.Raw
}

// Aggregation is the time-series bucketing granularity.
type Aggregation string

const (
	AggregationDaily   Aggregation = "daily"
	AggregationWeekly  Aggregation = "weekly"
	AggregationMonthly Aggregation = "monthly"
)

// ParseAggregation validates a user-supplied granularity.
func ParseAggregation(s string) (Aggregation, error) {
	switch a := Aggregation(strings.ToLower(strings.TrimSpace(s))); a {
	case AggregationDaily, AggregationWeekly, AggregationMonthly:
		return a, nil
	default:
		return "", fmt.Errorf("invalid aggregation: %q (use daily, weekly or monthly)", s)
	}
}

// Auth

type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	SessionID   ID     `json:"session_id,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// Data

// UploadRequest carries a file to POST /v1/data/upload. Content is held in
// memory so the multipart body can be rebuilt on retry.
type UploadRequest struct {
	FileName  string
	Content   []byte
	SessionID ID
	SheetName string
	Name      string
}

type UploadResult struct {
	SessionID ID               `json:"session_id"`
	DatasetID ID               `json:"dataset_id"`
	Rows      int              `json:"rows"`
	Columns   []string         `json:"columns"`
	Preview   []map[string]any `json:"preview"`
}

type SessionInfo struct {
	ID        ID        `json:"id"`
	CreatedAt Timestamp `json:"created_at"`
	ExpiresAt Timestamp `json:"expires_at,omitempty"`
}

type Dataset struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	SessionID ID        `json:"session_id,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
	Path      string    `json:"path,omitempty"`
}

type RenameResult struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Analysis

type TimeSeriesRequest struct {
	SessionID    ID          `json:"session_id"`
	DatasetID    ID          `json:"dataset_id,omitempty"`
	Store        string      `json:"store,omitempty"`
	TargetColumn string      `json:"target_column"`
	Aggregation  Aggregation `json:"aggregation,omitempty"`
	DateRange    []string    `json:"date_range,omitempty"`
}

type SeriesStatistics struct {
	Mean  *float64 `json:"mean,omitempty"`
	Std   *float64 `json:"std,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Trend string   `json:"trend,omitempty"`
}

type Series struct {
	Name       string            `json:"name"`
	Values     []float64         `json:"values"`
	Statistics *SeriesStatistics `json:"statistics,omitempty"`
}

type TimeSeriesResponse struct {
	Timestamp []string         `json:"timestamp"`
	Series    []Series         `json:"series"`
	Events    []map[string]any `json:"events,omitempty"`
}

// AnalysisTypeProductCategory is the only Pareto grouping the backend offers.
const AnalysisTypeProductCategory = "product_category"

type ParetoRequest struct {
	SessionID    ID     `json:"session_id"`
	DatasetID    ID     `json:"dataset_id,omitempty"`
	Store        string `json:"store,omitempty"`
	AnalysisType string `json:"analysis_type,omitempty"`
	Period       string `json:"period,omitempty"`
}

type ParetoMetadata struct {
	DisplayName string   `json:"display_name,omitempty"`
	Percentage  *float64 `json:"percentage,omitempty"`
	Cumulative  *float64 `json:"cumulative,omitempty"`
}

type ParetoItem struct {
	Category string          `json:"category"`
	Value    float64         `json:"value"`
	Metadata *ParetoMetadata `json:"metadata,omitempty"`
}

// Label prefers the server-provided display name.
func (p ParetoItem) Label() string {
	if p.Metadata != nil && p.Metadata.DisplayName != "" {
		return p.Metadata.DisplayName
	}
	return p.Category
}

type ParetoResponse struct {
	Data              []ParetoItem `json:"data"`
	Total             float64      `json:"total"`
	VitalFewThreshold int          `json:"vital_few_threshold"`
}

type HistogramRequest struct {
	SessionID ID     `json:"session_id"`
	DatasetID ID     `json:"dataset_id,omitempty"`
	Column    string `json:"column"`
	Bins      int    `json:"bins,omitempty"`
}

type HistogramFit struct {
	Distribution string         `json:"distribution,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}

type HistogramResponse struct {
	Bins    []float64      `json:"bins"`
	Counts  []int          `json:"counts"`
	Fit     *HistogramFit  `json:"fit,omitempty"`
	Summary map[string]any `json:"summary,omitempty"`
}

type HealthStatus struct {
	Status string `json:"status"`
}
