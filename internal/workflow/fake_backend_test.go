package workflow

import (
	"context"
	"sync"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
)

// fakeBackend scripts every endpoint the controller calls. Nil funcs
// return canned successes.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	listFn      func(api.ID) ([]api.Dataset, error)
	renameFn    func(ctx context.Context, id api.ID, name string) (*api.RenameResult, error)
	uploadFn    func(api.UploadRequest) (*api.UploadResult, error)
	timeFn      func(api.TimeSeriesRequest) (*api.TimeSeriesResponse, error)
	paretoFn    func(ctx context.Context, req api.ParetoRequest) (*api.ParetoResponse, error)
	histogramFn func(api.HistogramRequest) (*api.HistogramResponse, error)
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) ListDatasets(_ context.Context, sessionID api.ID) ([]api.Dataset, error) {
	f.record("list")
	if f.listFn != nil {
		return f.listFn(sessionID)
	}
	return nil, nil
}

func (f *fakeBackend) RenameDataset(ctx context.Context, datasetID api.ID, name string) (*api.RenameResult, error) {
	f.record("rename")
	if f.renameFn != nil {
		return f.renameFn(ctx, datasetID, name)
	}
	return &api.RenameResult{ID: datasetID, Name: name}, nil
}

func (f *fakeBackend) Upload(_ context.Context, req api.UploadRequest) (*api.UploadResult, error) {
	f.record("upload")
	if f.uploadFn != nil {
		return f.uploadFn(req)
	}
	sid := req.SessionID
	if sid.IsZero() {
		sid = "100"
	}
	return &api.UploadResult{SessionID: sid, DatasetID: "1", Columns: []string{"Total_Sales"}}, nil
}

func (f *fakeBackend) TimeSeries(_ context.Context, req api.TimeSeriesRequest) (*api.TimeSeriesResponse, error) {
	f.record("timeseries")
	if f.timeFn != nil {
		return f.timeFn(req)
	}
	return &api.TimeSeriesResponse{Series: []api.Series{{Name: req.TargetColumn}}}, nil
}

func (f *fakeBackend) Pareto(ctx context.Context, req api.ParetoRequest) (*api.ParetoResponse, error) {
	f.record("pareto")
	if f.paretoFn != nil {
		return f.paretoFn(ctx, req)
	}
	return &api.ParetoResponse{Total: 1}, nil
}

func (f *fakeBackend) Histogram(_ context.Context, req api.HistogramRequest) (*api.HistogramResponse, error) {
	f.record("histogram")
	if f.histogramFn != nil {
		return f.histogramFn(req)
	}
	return &api.HistogramResponse{Counts: []int{1}}, nil
}

func conflictErr() error {
	return &api.NameConflictError{APIError: &api.APIError{StatusCode: 409, Detail: "Dataset name already exists in this session"}}
}

func serverErr() error {
	return &api.ServerError{APIError: &api.APIError{StatusCode: 500, Detail: "boom"}}
}
