package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	"github.com/KaramelBytes/qstorm-cli/internal/errmap"
	"github.com/KaramelBytes/qstorm-cli/internal/workspace"
)

// Section scopes an error message to the action that produced it.
type Section string

const (
	SectionUpload   Section = "upload"
	SectionCatalog  Section = "catalog"
	SectionRename   Section = "rename"
	SectionAnalysis Section = "analysis"
)

// Backend is everything the controller needs from the platform API.
type Backend interface {
	CatalogBackend
	UploadBackend
	AnalysisBackend
}

// Options configures a Controller.
type Options struct {
	Backend Backend
	Mapper  errmap.Mapper
	Logger  *slog.Logger
}

// Controller owns the active session, active dataset, analysis form,
// catalog, result slots and rename slots. It is the only writer of them;
// all methods are safe for concurrent use and no lock is held across I/O.
type Controller struct {
	catalogSync *CatalogSync
	intake      *UploadIntake
	orch        *Orchestrator
	mapper      errmap.Mapper
	logger      *slog.Logger

	mu               sync.Mutex
	auth             api.ID
	local            api.ID
	active           ActiveSession
	hasActive        bool
	datasetID        api.ID
	columns          []string
	columnsByDataset map[api.ID][]string
	config           AnalysisConfig
	catalog          []api.Dataset
	results          ResultSet
	edit             *RenameAttempt
	inflight         map[api.ID]*RenameAttempt
	running          int
	errs             map[Section]error
}

// NewController builds a Controller with no identity and default form values.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		catalogSync:      NewCatalogSync(opts.Backend, logger),
		intake:           NewUploadIntake(opts.Backend, logger),
		orch:             NewOrchestrator(opts.Backend, logger),
		mapper:           opts.Mapper,
		logger:           logger.With("component", "controller"),
		columnsByDataset: map[api.ID][]string{},
		config:           DefaultConfig(),
		inflight:         map[api.ID]*RenameAttempt{},
		errs:             map[Section]error{},
	}
}

// reresolveLocked recomputes the active session. A different session id
// clears everything that belonged to the previous one.
func (c *Controller) reresolveLocked() bool {
	next, ok := Resolve(c.auth, c.local)
	if ok == c.hasActive && next.ID == c.active.ID {
		c.active = next
		return false
	}
	c.logger.Info("active session changed",
		"from", c.active.ID, "to", next.ID, "provenance", next.Provenance)
	c.active, c.hasActive = next, ok
	c.catalog = nil
	c.results = ResultSet{}
	c.datasetID = ""
	c.columns = nil
	c.config = DefaultConfig()
	c.edit = nil
	delete(c.errs, SectionCatalog)
	delete(c.errs, SectionRename)
	delete(c.errs, SectionAnalysis)
	return true
}

func (c *Controller) stampLocked() Stamp {
	return Stamp{SessionID: c.active.ID, DatasetID: c.datasetID}
}

func (c *Controller) setErrLocked(s Section, err error) {
	if err == nil {
		delete(c.errs, s)
		return
	}
	c.errs[s] = err
}

// SetAuthenticated installs (or clears, with "") the login session id.
// It reports whether the active session changed.
func (c *Controller) SetAuthenticated(sessionID api.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = sessionID
	return c.reresolveLocked()
}

// SetLocalSession installs the anonymous session id, e.g. one restored
// from disk. It reports whether the active session changed.
func (c *Controller) SetLocalSession(sessionID api.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = sessionID
	return c.reresolveLocked()
}

// SelectSession switches to another session of the current identity.
// While logged in the pick replaces the authenticated session id, so
// login precedence is unaffected.
func (c *Controller) SelectSession(sessionID api.ID) (ActiveSession, error) {
	if sessionID.IsZero() {
		return ActiveSession{}, &ValidationError{Field: "session", Message: "Session id is required"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.auth.IsZero() {
		c.auth = sessionID
	} else {
		c.local = sessionID
	}
	c.reresolveLocked()
	return c.active, nil
}

// Logout drops both identities; the next upload starts a fresh session.
func (c *Controller) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth, c.local = "", ""
	c.reresolveLocked()
}

// Active returns the resolved session, if any.
func (c *Controller) Active() (ActiveSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.hasActive
}

// RefreshCatalog replaces the catalog with the active session's datasets.
// A failure empties the catalog. ErrStale means the session changed while
// the list was loading and the response was dropped.
func (c *Controller) RefreshCatalog(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasActive {
		c.catalog = nil
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	sid := c.active.ID
	c.mu.Unlock()

	list, err := c.catalogSync.List(ctx, sid)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.ID != sid {
		return ErrStale
	}
	if err != nil {
		c.catalog = nil
		c.setErrLocked(SectionCatalog, err)
		return err
	}
	c.catalog = list
	c.setErrLocked(SectionCatalog, nil)
	return nil
}

// SelectDataset makes id the active dataset. Selecting the current dataset
// is a no-op. Rename slots and result slots are left alone; column defaults
// are rebuilt when the dataset's columns are known.
func (c *Controller) SelectDataset(id api.ID) error {
	if id.IsZero() {
		return &ValidationError{Field: "dataset", Message: "Dataset id is required"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasActive {
		return ErrNoActiveSession
	}
	if c.datasetID == id {
		return nil
	}
	if c.catalog != nil && !slices.ContainsFunc(c.catalog, func(d api.Dataset) bool { return d.ID == id }) {
		return &ValidationError{Field: "dataset", Message: fmt.Sprintf("Dataset %s is not in session %s", id, c.active.ID)}
	}
	c.datasetID = id
	if cols, ok := c.columnsByDataset[id]; ok {
		c.columns = slices.Clone(cols)
		c.config = DeriveConfig(cols, c.config)
	} else {
		c.columns = nil
	}
	return nil
}

// Upload submits a file against the active session (or none, letting the
// server create one) and adopts the result. A failure changes nothing but
// the upload section's error.
func (c *Controller) Upload(ctx context.Context, in UploadInput) (*api.UploadResult, error) {
	c.mu.Lock()
	sid := c.active.ID
	c.mu.Unlock()

	res, err := c.intake.Submit(ctx, in, sid)
	if err != nil {
		c.mu.Lock()
		c.setErrLocked(SectionUpload, err)
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.setErrLocked(SectionUpload, nil)
	if c.auth.IsZero() && !res.SessionID.IsZero() {
		c.local = res.SessionID
	}
	c.reresolveLocked()
	adopted := c.active.ID == res.SessionID
	if adopted {
		c.datasetID = res.DatasetID
		c.columns = slices.Clone(res.Columns)
		c.columnsByDataset[res.DatasetID] = slices.Clone(res.Columns)
		c.config = DeriveConfig(res.Columns, c.config)
	} else {
		c.logger.Warn("upload landed outside the active session",
			"upload_session_id", res.SessionID, "active_session_id", c.active.ID)
	}
	c.mu.Unlock()

	if err := c.RefreshCatalog(ctx); err != nil && !errors.Is(err, ErrStale) {
		c.logger.Warn("catalog refresh after upload failed", "error", err)
	}
	return res, nil
}

// Config returns the analysis form.
func (c *Controller) Config() AnalysisConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// SetConfig replaces the analysis form after checking the aggregation.
func (c *Controller) SetConfig(cfg AnalysisConfig) error {
	if cfg.Aggregation == "" {
		cfg.Aggregation = api.AggregationMonthly
	}
	if _, err := api.ParseAggregation(string(cfg.Aggregation)); err != nil {
		return &ValidationError{Field: "aggregation", Message: err.Error()}
	}
	cfg.TargetColumn = strings.TrimSpace(cfg.TargetColumn)
	cfg.HistogramColumn = strings.TrimSpace(cfg.HistogramColumn)
	cfg.Store = strings.TrimSpace(cfg.Store)
	cfg.Period = strings.TrimSpace(cfg.Period)
	cfg.DateFrom = strings.TrimSpace(cfg.DateFrom)
	cfg.DateTo = strings.TrimSpace(cfg.DateTo)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
	return nil
}

// CanRun reports whether Run would start; callers disable the trigger otherwise.
func (c *Controller) CanRun() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running > 0 {
		return errors.New("analysis already running")
	}
	return Check(c.stampLocked(), c.config)
}

// Run executes one analysis against the current session, dataset and form.
// Slots are replaced one at a time as their steps succeed. Results that
// arrive after the session or dataset changed are discarded.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	stamp, cfg := c.stampLocked(), c.config
	if err := Check(stamp, cfg); err != nil {
		c.mu.Unlock()
		return err
	}
	c.running++
	c.setErrLocked(SectionAnalysis, nil)
	c.mu.Unlock()

	err := c.orch.Run(ctx, stamp, cfg, c)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running--
	if err != nil && !errors.Is(err, ErrStale) && c.stampLocked() == stamp {
		c.setErrLocked(SectionAnalysis, err)
	}
	return err
}

func (c *Controller) CommitTimeSeries(s Stamp, v *api.TimeSeriesResponse) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stampLocked() != s {
		return false
	}
	return c.results.CommitTimeSeries(s, v)
}

func (c *Controller) CommitPareto(s Stamp, v *api.ParetoResponse) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stampLocked() != s {
		return false
	}
	return c.results.CommitPareto(s, v)
}

func (c *Controller) CommitHistogram(s Stamp, v *api.HistogramResponse) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stampLocked() != s {
		return false
	}
	return c.results.CommitHistogram(s, v)
}

// Results returns the current result slots.
func (c *Controller) Results() ResultSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// BeginRename opens the edit slot for a dataset, prefilled with its current
// name. Any unsaved edit of another dataset is discarded; submits already
// in flight are not affected.
func (c *Controller) BeginRename(datasetID api.ID) (RenameAttempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := slices.IndexFunc(c.catalog, func(d api.Dataset) bool { return d.ID == datasetID })
	if idx < 0 {
		return RenameAttempt{}, &ValidationError{Field: "dataset", Message: fmt.Sprintf("Dataset %s is not in the catalog", datasetID)}
	}
	if _, busy := c.inflight[datasetID]; busy {
		return RenameAttempt{}, &ValidationError{Field: "dataset", Message: "A rename of this dataset is already being saved"}
	}
	if c.edit != nil && c.edit.DatasetID == datasetID {
		return *c.edit, nil
	}
	c.edit = &RenameAttempt{
		DatasetID: datasetID,
		SessionID: c.active.ID,
		Proposed:  c.catalog[idx].Name,
		Phase:     RenameEditing,
	}
	c.setErrLocked(SectionRename, nil)
	return *c.edit, nil
}

// EditRename updates the proposed name of the open edit.
func (c *Controller) EditRename(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		return &ValidationError{Field: "rename", Message: "No rename in progress"}
	}
	c.edit.Proposed = name
	return nil
}

// CancelRename discards the open edit without submitting it.
func (c *Controller) CancelRename() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit = nil
	c.setErrLocked(SectionRename, nil)
}

// SubmitRename sends the open edit. On success the catalog is refetched.
// On failure the attempt returns to editing with its proposed name intact
// and the error attached, unless another dataset's edit has been opened
// in the meantime.
func (c *Controller) SubmitRename(ctx context.Context) error {
	c.mu.Lock()
	if c.edit == nil {
		c.mu.Unlock()
		return &ValidationError{Field: "rename", Message: "No rename in progress"}
	}
	if strings.TrimSpace(c.edit.Proposed) == "" {
		err := &ValidationError{Field: "name", Message: "Dataset name is required"}
		c.edit.Err = err
		c.setErrLocked(SectionRename, err)
		c.mu.Unlock()
		return err
	}
	attempt := *c.edit
	attempt.Phase = RenameSubmitting
	attempt.Err = nil
	c.inflight[attempt.DatasetID] = &attempt
	c.edit = nil
	c.setErrLocked(SectionRename, nil)
	c.mu.Unlock()

	_, err := c.catalogSync.Rename(ctx, attempt.DatasetID, attempt.Proposed)

	c.mu.Lock()
	delete(c.inflight, attempt.DatasetID)
	if c.active.ID != attempt.SessionID {
		c.mu.Unlock()
		if err != nil {
			return err
		}
		return ErrStale
	}
	if err != nil {
		attempt.Phase = RenameEditing
		attempt.Err = err
		if c.edit == nil || c.edit.DatasetID == attempt.DatasetID {
			c.edit = &attempt
		}
		c.setErrLocked(SectionRename, err)
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := c.RefreshCatalog(ctx); err != nil && !errors.Is(err, ErrStale) {
		c.logger.Warn("catalog refresh after rename failed", "error", err)
	}
	return nil
}

// Rename opens, fills and submits an edit in one call.
func (c *Controller) Rename(ctx context.Context, datasetID api.ID, name string) error {
	if _, err := c.BeginRename(datasetID); err != nil {
		return err
	}
	if err := c.EditRename(name); err != nil {
		return err
	}
	return c.SubmitRename(ctx)
}

// Error returns the mapped message for a section, or "".
func (c *Controller) Error(s Section) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapper.FromError(c.errs[s])
}

// ClearError dismisses a section's message.
func (c *Controller) ClearError(s Section) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.errs, s)
}

// State is a point-in-time copy of the controller.
type State struct {
	Active       ActiveSession
	HasActive    bool
	AuthSession  api.ID
	LocalSession api.ID
	DatasetID    api.ID
	Columns      []string
	Config       AnalysisConfig
	Catalog      []api.Dataset
	Results      ResultSet
	// Editing is the open rename edit, if any.
	Editing *RenameAttempt
	// Submitting lists renames waiting on the server.
	Submitting []RenameAttempt
	Loading    bool
	Errors     map[Section]string
}

// Dataset returns the catalog entry of the active dataset.
func (s State) Dataset() (api.Dataset, bool) {
	for _, d := range s.Catalog {
		if d.ID == s.DatasetID {
			return d, true
		}
	}
	return api.Dataset{}, false
}

// Snapshot copies the controller state for rendering.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Active:       c.active,
		HasActive:    c.hasActive,
		AuthSession:  c.auth,
		LocalSession: c.local,
		DatasetID:    c.datasetID,
		Columns:      slices.Clone(c.columns),
		Config:       c.config,
		Catalog:      slices.Clone(c.catalog),
		Results:      c.results,
		Loading:      c.running > 0,
		Errors:       make(map[Section]string, len(c.errs)),
	}
	if c.edit != nil {
		e := *c.edit
		st.Editing = &e
	}
	for _, a := range c.inflight {
		st.Submitting = append(st.Submitting, *a)
	}
	slices.SortFunc(st.Submitting, func(a, b RenameAttempt) int { return strings.Compare(a.DatasetID.String(), b.DatasetID.String()) })
	for s, err := range c.errs {
		st.Errors[s] = c.mapper.FromError(err)
	}
	return st
}

// Restore loads persisted workspace state. Call it after SetAuthenticated.
// The dataset and form are restored only when they were saved for the
// session that is active now.
func (c *Controller) Restore(ws *workspace.State) {
	if ws == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = api.ID(ws.LocalSession)
	c.reresolveLocked()
	for id, cols := range ws.ColumnsByDataset {
		c.columnsByDataset[api.ID(id)] = slices.Clone(cols)
	}
	if !c.hasActive || c.active.ID != api.ID(ws.ActiveSession) {
		return
	}
	c.datasetID = api.ID(ws.DatasetID)
	c.columns = slices.Clone(ws.Columns)
	a := ws.Analysis
	cfg := AnalysisConfig{
		TargetColumn:    a.TargetColumn,
		HistogramColumn: a.HistogramColumn,
		Aggregation:     api.Aggregation(a.Aggregation),
		Store:           a.Store,
		Period:          a.Period,
		DateFrom:        a.DateFrom,
		DateTo:          a.DateTo,
	}
	if _, err := api.ParseAggregation(a.Aggregation); err != nil {
		cfg.Aggregation = api.AggregationMonthly
	}
	if cfg.TargetColumn == "" && cfg.HistogramColumn == "" {
		cfg = DeriveConfig(c.columns, DefaultConfig())
	}
	c.config = cfg
}

// Workspace exports the state worth keeping between invocations.
func (c *Controller) Workspace() *workspace.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := &workspace.State{
		LocalSession:  c.local.String(),
		ActiveSession: c.active.ID.String(),
		DatasetID:     c.datasetID.String(),
		Columns:       slices.Clone(c.columns),
		Analysis: workspace.Analysis{
			TargetColumn:    c.config.TargetColumn,
			HistogramColumn: c.config.HistogramColumn,
			Aggregation:     string(c.config.Aggregation),
			Store:           c.config.Store,
			Period:          c.config.Period,
			DateFrom:        c.config.DateFrom,
			DateTo:          c.config.DateTo,
		},
	}
	if len(c.columnsByDataset) > 0 {
		ws.ColumnsByDataset = make(map[string][]string, len(c.columnsByDataset))
		for id, cols := range c.columnsByDataset {
			ws.ColumnsByDataset[id.String()] = slices.Clone(cols)
		}
	}
	return ws
}
