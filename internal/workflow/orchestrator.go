package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
)

// Step names one analysis request of a run.
type Step string

const (
	StepTimeSeries Step = "timeseries"
	StepPareto     Step = "pareto"
	StepHistogram  Step = "histogram"
)

// AnalysisBackend is the subset of the platform API a run needs.
type AnalysisBackend interface {
	TimeSeries(ctx context.Context, req api.TimeSeriesRequest) (*api.TimeSeriesResponse, error)
	Pareto(ctx context.Context, req api.ParetoRequest) (*api.ParetoResponse, error)
	Histogram(ctx context.Context, req api.HistogramRequest) (*api.HistogramResponse, error)
}

// Stamp identifies what a request targeted. Results are applied only while
// the stamp still matches the active session and dataset.
type Stamp struct {
	SessionID api.ID
	DatasetID api.ID
}

// Committer receives each result the moment its step succeeds. A false
// return means the target is no longer active and the run must stop.
type Committer interface {
	CommitTimeSeries(Stamp, *api.TimeSeriesResponse) bool
	CommitPareto(Stamp, *api.ParetoResponse) bool
	CommitHistogram(Stamp, *api.HistogramResponse) bool
}

// ResultSet holds up to three independently present results.
type ResultSet struct {
	TimeSeries *api.TimeSeriesResponse `json:"timeseries,omitempty"`
	Pareto     *api.ParetoResponse     `json:"pareto,omitempty"`
	Histogram  *api.HistogramResponse  `json:"histogram,omitempty"`
}

// Empty reports whether no slot is populated.
func (r ResultSet) Empty() bool {
	return r.TimeSeries == nil && r.Pareto == nil && r.Histogram == nil
}

func (r *ResultSet) CommitTimeSeries(_ Stamp, v *api.TimeSeriesResponse) bool {
	r.TimeSeries = v
	return true
}

func (r *ResultSet) CommitPareto(_ Stamp, v *api.ParetoResponse) bool {
	r.Pareto = v
	return true
}

func (r *ResultSet) CommitHistogram(_ Stamp, v *api.HistogramResponse) bool {
	r.Histogram = v
	return true
}

// Orchestrator runs time series, Pareto and histogram as one operation.
type Orchestrator struct {
	backend AnalysisBackend
	logger  *slog.Logger
}

// NewOrchestrator wires an Orchestrator to its backend.
func NewOrchestrator(backend AnalysisBackend, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{backend: backend, logger: logger.With("component", "analysis")}
}

// Check reports whether a run against target with cfg may start.
func Check(target Stamp, cfg AnalysisConfig) error {
	if target.SessionID.IsZero() {
		return ErrNoActiveSession
	}
	if strings.TrimSpace(cfg.TargetColumn) == "" {
		return ErrEmptyTargetColumn
	}
	return nil
}

// Run executes the three steps strictly in order. Each result is committed
// as soon as its own step succeeds; the first failure aborts the run with a
// *StepError and leaves later slots untouched.
func (o *Orchestrator) Run(ctx context.Context, target Stamp, cfg AnalysisConfig, sink Committer) error {
	if err := Check(target, cfg); err != nil {
		return err
	}
	start := time.Now()
	log := o.logger.With("session_id", target.SessionID, "dataset_id", target.DatasetID)

	ts, err := o.backend.TimeSeries(ctx, api.TimeSeriesRequest{
		SessionID:    target.SessionID,
		DatasetID:    target.DatasetID,
		Store:        cfg.Store,
		TargetColumn: cfg.TargetColumn,
		Aggregation:  cfg.Aggregation,
		DateRange:    cfg.dateRange(),
	})
	if err != nil {
		return o.fail(log, StepTimeSeries, err)
	}
	if !sink.CommitTimeSeries(target, ts) {
		return ErrStale
	}

	pa, err := o.backend.Pareto(ctx, api.ParetoRequest{
		SessionID:    target.SessionID,
		DatasetID:    target.DatasetID,
		Store:        cfg.Store,
		AnalysisType: api.AnalysisTypeProductCategory,
		Period:       cfg.Period,
	})
	if err != nil {
		return o.fail(log, StepPareto, err)
	}
	if !sink.CommitPareto(target, pa) {
		return ErrStale
	}

	hi, err := o.backend.Histogram(ctx, api.HistogramRequest{
		SessionID: target.SessionID,
		DatasetID: target.DatasetID,
		Column:    cfg.histogramColumn(),
		Bins:      HistogramBins,
	})
	if err != nil {
		return o.fail(log, StepHistogram, err)
	}
	if !sink.CommitHistogram(target, hi) {
		return ErrStale
	}

	log.Info("analysis complete", "target_column", cfg.TargetColumn, "duration", time.Since(start))
	return nil
}

func (o *Orchestrator) fail(log *slog.Logger, step Step, err error) error {
	log.Warn("analysis step failed", "step", step, "error", err)
	return &StepError{Step: step, Err: err}
}
