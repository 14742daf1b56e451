package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	"github.com/KaramelBytes/qstorm-cli/internal/errmap"
	"github.com/KaramelBytes/qstorm-cli/internal/workspace"
)

func TestDefaultDatasetName(t *testing.T) {
	cases := map[string]string{
		"sales.csv":            "sales",
		"/data/q1.report.xlsx": "q1.report",
		"noext":                "noext",
		".csv":                 "",
		"  売上.xls ":           "売上",
	}
	for in, want := range cases {
		assert.Equal(t, want, DefaultDatasetName(in), in)
	}
}

func TestDeriveConfig(t *testing.T) {
	cfg := DeriveConfig([]string{"Date", "Store", "Total_Sales", "Category"}, DefaultConfig())
	assert.Equal(t, "Total_Sales", cfg.TargetColumn)
	assert.Equal(t, "Date", cfg.HistogramColumn)

	cfg = DeriveConfig([]string{"A", "B"}, AnalysisConfig{Aggregation: api.AggregationDaily, Store: "S1"})
	assert.Equal(t, "A", cfg.TargetColumn)
	assert.Equal(t, "A", cfg.HistogramColumn)
	assert.Equal(t, api.AggregationDaily, cfg.Aggregation)
	assert.Equal(t, "S1", cfg.Store)
}

func TestUploadAdoptsSessionDatasetAndDefaults(t *testing.T) {
	var sent api.UploadRequest
	fb := &fakeBackend{
		uploadFn: func(r api.UploadRequest) (*api.UploadResult, error) {
			sent = r
			return &api.UploadResult{SessionID: "42", DatasetID: "7", Rows: 3,
				Columns: []string{"Date", "Store", "Total_Sales", "Category"}}, nil
		},
		listFn: func(sid api.ID) ([]api.Dataset, error) {
			return []api.Dataset{{ID: "7", Name: "sales", SessionID: sid}}, nil
		},
	}
	c := NewController(Options{Backend: fb})

	res, err := c.Upload(context.Background(), UploadInput{FileName: "/tmp/sales.csv", Content: []byte("Date\n")})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.True(t, sent.SessionID.IsZero(), "no session yet, server creates one")
	assert.Equal(t, "sales", sent.Name)

	st := c.Snapshot()
	assert.Equal(t, ActiveSession{ID: "42", Provenance: Anonymous}, st.Active)
	assert.Equal(t, api.ID("7"), st.DatasetID)
	assert.Equal(t, "Total_Sales", st.Config.TargetColumn)
	assert.Equal(t, "Date", st.Config.HistogramColumn)
	require.Len(t, st.Catalog, 1, "catalog refreshed for the new session")
	assert.Equal(t, []string{"upload", "list"}, fb.Calls())

	// second upload reuses the active session
	fb.uploadFn = func(r api.UploadRequest) (*api.UploadResult, error) {
		sent = r
		return &api.UploadResult{SessionID: r.SessionID, DatasetID: "8", Columns: []string{"A", "B"}}, nil
	}
	_, err = c.Upload(context.Background(), UploadInput{FileName: "b.csv", Content: []byte("A,B\n"), Name: "custom"})
	require.NoError(t, err)
	assert.Equal(t, api.ID("42"), sent.SessionID)
	assert.Equal(t, "custom", sent.Name)
	st = c.Snapshot()
	assert.Equal(t, "A", st.Config.TargetColumn)
	assert.Equal(t, "A", st.Config.HistogramColumn)

	// switching back to the first dataset rebuilds its defaults
	require.NoError(t, c.SelectDataset("7"))
	assert.Equal(t, "Total_Sales", c.Config().TargetColumn)
}

func TestFailedUploadLeavesStateUntouched(t *testing.T) {
	fb := &fakeBackend{}
	c := NewController(Options{Backend: fb, Mapper: errmap.New("en")})
	_, err := c.Upload(context.Background(), UploadInput{FileName: "a.csv", Content: []byte("Total_Sales\n")})
	require.NoError(t, err)
	before := c.Snapshot()

	fb.uploadFn = func(api.UploadRequest) (*api.UploadResult, error) {
		return nil, &api.BadRequestError{APIError: &api.APIError{StatusCode: 400, Detail: "Unsupported file type"}}
	}
	_, err = c.Upload(context.Background(), UploadInput{FileName: "b.csv", Content: []byte("x")})
	require.Error(t, err)

	after := c.Snapshot()
	assert.Equal(t, before.Active, after.Active)
	assert.Equal(t, before.DatasetID, after.DatasetID)
	assert.Equal(t, before.Columns, after.Columns)
	assert.Equal(t, before.Config, after.Config)
	assert.Equal(t, "Invalid input", after.Errors[SectionUpload])
	assert.Empty(t, after.Errors[SectionAnalysis], "errors stay in their own section")
}

func TestUploadValidationSendsNothing(t *testing.T) {
	fb := &fakeBackend{}
	c := NewController(Options{Backend: fb})
	cases := []UploadInput{
		{FileName: "", Content: []byte("x")},
		{FileName: "notes.txt", Content: []byte("x")},
		{FileName: "a.csv"},
		{FileName: "a.csv", Content: []byte("x"), SheetName: "Sheet1"},
		{FileName: "a.xlsx", Content: []byte("not a zip"), SheetName: "Sheet1"},
	}
	for _, in := range cases {
		_, err := c.Upload(context.Background(), in)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "%+v", in)
	}
	assert.Empty(t, fb.Calls())
	_, ok := c.Active()
	assert.False(t, ok)
}

func TestWorkspaceRoundTrip(t *testing.T) {
	fb := &fakeBackend{uploadFn: func(api.UploadRequest) (*api.UploadResult, error) {
		return &api.UploadResult{SessionID: "42", DatasetID: "7", Columns: []string{"Date", "Total_Sales"}}, nil
	}}
	c := NewController(Options{Backend: fb})
	_, err := c.Upload(context.Background(), UploadInput{FileName: "s.csv", Content: []byte("x")})
	require.NoError(t, err)
	cfg := c.Config()
	cfg.Aggregation = api.AggregationWeekly
	cfg.Store = "Osaka"
	require.NoError(t, c.SetConfig(cfg))

	ws := c.Workspace()
	assert.Equal(t, "42", ws.ActiveSession)

	restored := NewController(Options{Backend: fb})
	restored.Restore(ws)
	st := restored.Snapshot()
	assert.Equal(t, api.ID("42"), st.Active.ID)
	assert.Equal(t, api.ID("7"), st.DatasetID)
	assert.Equal(t, cfg, st.Config)

	// a login in between invalidates the saved dataset
	authed := NewController(Options{Backend: fb})
	authed.SetAuthenticated("5")
	authed.Restore(ws)
	st = authed.Snapshot()
	assert.Equal(t, api.ID("5"), st.Active.ID)
	assert.True(t, st.DatasetID.IsZero())
	assert.Equal(t, api.ID("42"), st.LocalSession)

	authed.Restore(&workspace.State{})
	assert.Equal(t, api.ID("5"), authed.Snapshot().Active.ID)
}
