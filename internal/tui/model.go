// Package tui is the interactive dashboard: upload, catalog, rename and
// analysis against the active session in one screen.
//
// The model runs on the bubbletea event loop. All shared state lives in the
// workflow.Controller; blocking calls run as tea.Cmds and report back with
// messages.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	"github.com/KaramelBytes/qstorm-cli/internal/errmap"
	"github.com/KaramelBytes/qstorm-cli/internal/render"
	"github.com/KaramelBytes/qstorm-cli/internal/spreadsheet"
	"github.com/KaramelBytes/qstorm-cli/internal/workflow"
)

// Mode is what the keyboard currently drives.
type Mode int

const (
	ModeBrowse Mode = iota
	ModeUploadPath
	ModeUploadSheet
	ModeRename
	ModeStore
	ModePeriod
	ModeSessions
)

// SessionLister lists the sessions of the logged-in user.
type SessionLister interface {
	ListSessions(ctx context.Context) ([]api.SessionInfo, error)
}

// Options wires the dashboard to the rest of the CLI.
type Options struct {
	Controller *workflow.Controller
	Sessions   SessionLister
	// ReloadIdentity re-reads stored credentials and returns the
	// authenticated session id, or "" when logged out.
	ReloadIdentity func(ctx context.Context) (api.ID, error)
	// SessionSelected persists a session picked while logged in.
	SessionSelected func(ctx context.Context, s workflow.ActiveSession) error
	// CredentialsChanged fires when another process logs in or out.
	CredentialsChanged <-chan struct{}
	Mapper             errmap.Mapper
	Logger             *slog.Logger
}

// Messages

type catalogMsg struct{ err error }

type uploadMsg struct {
	res *api.UploadResult
	err error
}

type runMsg struct{ err error }

type renameMsg struct{ err error }

type sessionsMsg struct {
	list []api.SessionInfo
	err  error
}

type credentialsMsg struct{}

type identityMsg struct {
	changed bool
	err     error
}

// Model is the dashboard's bubbletea model.
type Model struct {
	opts   Options
	ctrl   *workflow.Controller
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mode     Mode
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	uploadPath  string
	sessions    []api.SessionInfo
	sessionIdx  int
	busy        int
	notice      string
	noticeIsErr bool
	quitting    bool
}

// New builds the dashboard model.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	in := textinput.New()
	in.CharLimit = 512
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = render.Styles.Title
	return Model{
		opts:    opts,
		ctrl:    opts.Controller,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With("component", "tui"),
		input:   in,
		spinner: sp,
	}
}

// Mode reports the current input mode.
func (m Model) Mode() Mode { return m.mode }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if _, ok := m.ctrl.Active(); ok {
		cmds = append(cmds, m.refreshCatalog())
	}
	if m.opts.CredentialsChanged != nil {
		cmds = append(cmds, waitForCredentials(m.opts.CredentialsChanged))
	}
	return tea.Batch(cmds...)
}

func waitForCredentials(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return credentialsMsg{}
	}
}

func (m Model) refreshCatalog() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg { return catalogMsg{err: ctrl.RefreshCatalog(ctx)} }
}

func (m Model) runAnalysis() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg { return runMsg{err: ctrl.Run(ctx)} }
}

func (m Model) submitRename() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg { return renameMsg{err: ctrl.SubmitRename(ctx)} }
}

func (m Model) upload(path, sheet string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		content, err := os.ReadFile(path)
		if err != nil {
			return uploadMsg{err: &workflow.ValidationError{Field: "file", Message: fmt.Sprintf("Cannot read %s", filepath.Base(path))}}
		}
		res, err := ctrl.Upload(ctx, workflow.UploadInput{FileName: filepath.Base(path), Content: content, SheetName: sheet})
		return uploadMsg{res: res, err: err}
	}
}

func (m Model) listSessions() tea.Cmd {
	lister, ctx := m.opts.Sessions, m.ctx
	return func() tea.Msg {
		if lister == nil {
			return sessionsMsg{}
		}
		list, err := lister.ListSessions(ctx)
		return sessionsMsg{list: list, err: err}
	}
}

func (m Model) reloadIdentity() tea.Cmd {
	reload, ctrl, ctx := m.opts.ReloadIdentity, m.ctrl, m.ctx
	return func() tea.Msg {
		if reload == nil {
			return identityMsg{}
		}
		sid, err := reload(ctx)
		if err != nil {
			return identityMsg{err: err}
		}
		return identityMsg{changed: ctrl.SetAuthenticated(sid)}
	}
}

func (m Model) selectSession(id api.ID) tea.Cmd {
	ctrl, ctx, persist := m.ctrl, m.ctx, m.opts.SessionSelected
	return func() tea.Msg {
		active, err := ctrl.SelectSession(id)
		if err != nil {
			return identityMsg{err: err}
		}
		if persist != nil && active.Provenance == workflow.Authenticated {
			if err := persist(ctx, active); err != nil {
				return identityMsg{changed: true, err: err}
			}
		}
		return identityMsg{changed: true}
	}
}

func (m *Model) start() { m.busy++ }

func (m *Model) done() {
	if m.busy > 0 {
		m.busy--
	}
}

func (m *Model) setNotice(msg string, isErr bool) {
	m.notice, m.noticeIsErr = msg, isErr
}

// fail shows err unless it is already attached to a section or is a stale
// response that nobody should see.
func (m *Model) fail(err error) {
	if err == nil || errors.Is(err, workflow.ErrStale) {
		return
	}
	var ve *workflow.ValidationError
	if errors.As(err, &ve) {
		m.setNotice(m.opts.Mapper.FromError(err), true)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := max(m.height-4, 3)
		if !m.ready {
			m.viewport = viewport.New(m.width, h)
			m.ready = true
		} else {
			m.viewport.Width, m.viewport.Height = m.width, h
		}
		m.viewport.SetContent(m.body())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case catalogMsg:
		m.done()
		if msg.err != nil && !errors.Is(msg.err, workflow.ErrNoActiveSession) {
			m.logger.Debug("catalog refresh failed", "error", msg.err)
		}
		return m.refreshed(nil)

	case uploadMsg:
		m.done()
		if msg.err != nil {
			m.notice = ""
			m.fail(msg.err)
			return m.refreshed(nil)
		}
		m.setNotice(fmt.Sprintf("%s Uploaded dataset %s (%d rows)", render.IconSuccess, msg.res.DatasetID, msg.res.Rows), false)
		return m.refreshed(nil)

	case runMsg:
		m.done()
		m.fail(msg.err)
		if msg.err == nil {
			m.setNotice(render.IconSuccess+" Analysis complete", false)
		}
		return m.refreshed(nil)

	case renameMsg:
		m.done()
		if msg.err == nil {
			m.mode = ModeBrowse
			m.setNotice(render.IconSuccess+" Dataset renamed", false)
		} else if st := m.ctrl.Snapshot(); st.Editing != nil && m.mode != ModeRename {
			// back to the edit with the proposed name intact
			m.mode = ModeRename
			m.input.SetValue(st.Editing.Proposed)
			m.input.Focus()
		}
		m.fail(msg.err)
		return m.refreshed(nil)

	case sessionsMsg:
		m.done()
		if msg.err != nil {
			m.setNotice(m.opts.Mapper.FromError(msg.err), true)
		}
		m.sessions = msg.list
		m.sessionIdx = 0
		st := m.ctrl.Snapshot()
		for i, s := range m.sessions {
			if s.ID == st.Active.ID {
				m.sessionIdx = i
			}
		}
		return m.refreshed(nil)

	case credentialsMsg:
		m.start()
		return m, tea.Batch(m.reloadIdentity(), waitForCredentials(m.opts.CredentialsChanged))

	case identityMsg:
		m.done()
		if msg.err != nil {
			m.setNotice(m.opts.Mapper.FromError(msg.err), true)
		}
		if msg.changed {
			m.mode = ModeBrowse
			m.input.Blur()
			m.start()
			return m.refreshed(m.refreshCatalog())
		}
		return m.refreshed(nil)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.mode == ModeBrowse {
			return m.browseKey(msg)
		}
		if m.mode == ModeSessions {
			return m.sessionKey(msg)
		}
		return m.inputKey(msg)
	}
	return m, nil
}

func (m Model) refreshed(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if m.ready {
		m.viewport.SetContent(m.body())
	}
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	return m, tea.Quit
}

func (m Model) openInput(mode Mode, prompt, value string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.notice = ""
	return m.refreshed(m.input.Focus())
}

func (m Model) browseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.ctrl.Snapshot()
	switch msg.String() {
	case "q":
		return m.quit()
	case "u":
		return m.openInput(ModeUploadPath, "File: ", "")
	case "r":
		if err := m.ctrl.CanRun(); err != nil {
			var ve *workflow.ValidationError
			if errors.As(err, &ve) {
				m.setNotice(m.opts.Mapper.FromError(err), true)
			} else {
				m.setNotice(err.Error(), true)
			}
			return m.refreshed(nil)
		}
		m.notice = ""
		m.start()
		return m.refreshed(m.runAnalysis())
	case "c":
		m.start()
		return m, m.refreshCatalog()
	case "tab", "d", "shift+tab":
		if len(st.Catalog) == 0 {
			return m, nil
		}
		step := 1
		if msg.String() == "shift+tab" {
			step = -1
		}
		idx := -1
		for i, d := range st.Catalog {
			if d.ID == st.DatasetID {
				idx = i
			}
		}
		next := st.Catalog[(idx+step+len(st.Catalog))%len(st.Catalog)]
		m.fail(m.ctrl.SelectDataset(next.ID))
		return m.refreshed(nil)
	case "e":
		if st.DatasetID.IsZero() {
			m.setNotice("Select a dataset to rename", true)
			return m.refreshed(nil)
		}
		att, err := m.ctrl.BeginRename(st.DatasetID)
		if err != nil {
			m.fail(err)
			return m.refreshed(nil)
		}
		return m.openInput(ModeRename, "Name: ", att.Proposed)
	case "t", "h":
		if len(st.Columns) == 0 {
			return m, nil
		}
		cfg := st.Config
		if msg.String() == "t" {
			cfg.TargetColumn = cycle(st.Columns, cfg.TargetColumn)
		} else {
			cfg.HistogramColumn = cycle(st.Columns, cfg.HistogramColumn)
		}
		m.fail(m.ctrl.SetConfig(cfg))
		return m.refreshed(nil)
	case "a":
		cfg := st.Config
		aggs := []string{string(api.AggregationDaily), string(api.AggregationWeekly), string(api.AggregationMonthly)}
		cfg.Aggregation = api.Aggregation(cycle(aggs, string(cfg.Aggregation)))
		m.fail(m.ctrl.SetConfig(cfg))
		return m.refreshed(nil)
	case "/":
		return m.openInput(ModeStore, "Store: ", st.Config.Store)
	case "p":
		return m.openInput(ModePeriod, "Period (YYYY-MM): ", st.Config.Period)
	case "s":
		m.mode = ModeSessions
		m.sessions = nil
		if st.Active.Provenance == workflow.Authenticated && st.HasActive {
			m.start()
			return m.refreshed(m.listSessions())
		}
		if st.HasActive {
			m.sessions = []api.SessionInfo{{ID: st.Active.ID}}
		}
		return m.refreshed(nil)
	case "esc":
		m.notice = ""
		return m.refreshed(nil)
	}
	return m, nil
}

func (m Model) sessionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "s":
		m.mode = ModeBrowse
		return m.refreshed(nil)
	case "up", "k":
		if m.sessionIdx > 0 {
			m.sessionIdx--
		}
		return m.refreshed(nil)
	case "down", "j":
		if m.sessionIdx < len(m.sessions)-1 {
			m.sessionIdx++
		}
		return m.refreshed(nil)
	case "enter":
		m.mode = ModeBrowse
		if m.sessionIdx >= len(m.sessions) {
			return m.refreshed(nil)
		}
		id := m.sessions[m.sessionIdx].ID
		if st := m.ctrl.Snapshot(); st.Active.ID == id {
			return m.refreshed(nil)
		}
		m.start()
		return m.refreshed(m.selectSession(id))
	}
	return m, nil
}

func (m Model) inputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.mode == ModeRename {
			m.ctrl.CancelRename()
		}
		m.mode = ModeBrowse
		m.input.Blur()
		return m.refreshed(nil)
	case "enter":
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == ModeRename {
		_ = m.ctrl.EditRename(m.input.Value())
	}
	return m.refreshed(cmd)
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	mode := m.mode
	m.mode = ModeBrowse
	m.input.Blur()
	switch mode {
	case ModeUploadPath:
		if value == "" {
			return m.refreshed(nil)
		}
		if f, err := spreadsheet.DetectFormat(value); err == nil && f == spreadsheet.FormatXLSX {
			m.uploadPath = value
			return m.openInput(ModeUploadSheet, "Sheet (blank for first): ", "")
		}
		m.start()
		m.setNotice("Uploading "+filepath.Base(value)+"…", false)
		return m.refreshed(m.upload(value, ""))
	case ModeUploadSheet:
		m.start()
		m.setNotice("Uploading "+filepath.Base(m.uploadPath)+"…", false)
		return m.refreshed(m.upload(m.uploadPath, value))
	case ModeRename:
		if err := m.ctrl.EditRename(m.input.Value()); err != nil {
			m.fail(err)
			return m.refreshed(nil)
		}
		m.start()
		return m.refreshed(m.submitRename())
	case ModeStore, ModePeriod:
		cfg := m.ctrl.Config()
		if mode == ModeStore {
			cfg.Store = value
		} else {
			cfg.Period = value
		}
		m.fail(m.ctrl.SetConfig(cfg))
		return m.refreshed(nil)
	}
	return m.refreshed(nil)
}

// cycle returns the element after cur, wrapping around.
func cycle(values []string, cur string) string {
	for i, v := range values {
		if v == cur {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}
