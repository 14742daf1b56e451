package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	cfgpkg "github.com/KaramelBytes/qstorm-cli/internal/config"
	"github.com/KaramelBytes/qstorm-cli/internal/credstore"
	"github.com/KaramelBytes/qstorm-cli/internal/errmap"
	"github.com/KaramelBytes/qstorm-cli/internal/logging"
	"github.com/KaramelBytes/qstorm-cli/internal/render"
	"github.com/KaramelBytes/qstorm-cli/internal/workflow"
	"github.com/KaramelBytes/qstorm-cli/internal/workspace"
)

// app is the per-invocation wiring: config, logger, credentials, API
// client and a controller restored from the workspace file.
type app struct {
	cfg      *cfgpkg.Global
	logger   *slog.Logger
	closeLog func() error
	store    credstore.Store
	creds    *credstore.Accessor
	client   *api.Client
	ctrl     *workflow.Controller
	ws       workspace.Store
	out      *render.Renderer
	mapper   errmap.Mapper
}

func newApp(cmd *cobra.Command) (*app, error) { return buildApp(cmd, nil) }

// buildApp wires an app. Without a log file, logs go to stderr; a non-nil
// stderr replaces os.Stderr as that destination.
func buildApp(cmd *cobra.Command, stderr io.Writer) (*app, error) {
	if err := ensureConfig(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lc := logging.Config{Level: cfg.LogLevel, File: cfg.LogFile}
	if cfg.LogFile == "" {
		lc.Writer = stderr
	}
	logger, closeLog, err := logging.New(lc)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := credstore.Open(credstore.Kind(cfg.CredentialStore), cfg.CredentialPath)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	creds, err := credstore.Init(ctx, store, logger)
	if err != nil {
		_ = store.Close()
		_ = closeLog()
		return nil, err
	}
	current := creds.Current()
	client := api.NewClient(api.Options{
		BaseURL:      cfg.BaseURL,
		HTTPTimeout:  time.Duration(cfg.HTTPTimeoutSec) * time.Second,
		RetryMax:     cfg.RetryMaxAttempts,
		BaseDelay:    time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
		RateLimitRPS: cfg.RateLimitRPS,
		Token:        current.Token,
		Logger:       logger,
	})
	mapper := errmap.New(cfg.Locale)
	ctrl := workflow.NewController(workflow.Options{Backend: client, Mapper: mapper, Logger: logger})
	ctrl.SetAuthenticated(api.ID(current.SessionID))

	ws := workspace.Store{Path: cfg.WorkspacePath}
	state, err := ws.Load()
	if err != nil {
		// a damaged workspace only costs the remembered selection
		logger.Warn("ignoring unreadable workspace", "path", ws.Path, "error", err)
	} else {
		ctrl.Restore(state)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		store:    store,
		creds:    creds,
		client:   client,
		ctrl:     ctrl,
		ws:       ws,
		out:      render.New(cmd.OutOrStdout(), cfg.Output),
		mapper:   mapper,
	}, nil
}

// save persists the workspace for the next invocation.
func (a *app) save() error {
	if err := a.ws.Save(a.ctrl.Workspace()); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

func (a *app) Close() error {
	return errors.Join(credstore.Teardown(), a.closeLog())
}

// login installs a fresh token for the client, the credential store and
// the controller.
func (a *app) login(ctx context.Context, res *api.LoginResult, username string) error {
	if err := a.creds.Login(ctx, res.AccessToken, res.SessionID.String(), username); err != nil {
		return err
	}
	a.client.SetToken(res.AccessToken)
	a.ctrl.SetAuthenticated(res.SessionID)
	return a.save()
}

// selectSession switches the active session; while logged in the pick is
// written to the credential store so later invocations keep it.
func (a *app) selectSession(ctx context.Context, id api.ID) (workflow.ActiveSession, error) {
	active, err := a.ctrl.SelectSession(id)
	if err != nil {
		return active, err
	}
	if err := a.persistSession(ctx, active); err != nil {
		return active, err
	}
	return active, a.save()
}

func (a *app) persistSession(ctx context.Context, s workflow.ActiveSession) error {
	if s.Provenance != workflow.Authenticated {
		return nil
	}
	return a.creds.SetSession(ctx, s.ID.String())
}

// reloadIdentity re-reads the credential store, e.g. after another
// terminal logged in or out, and returns the authenticated session id.
func (a *app) reloadIdentity(ctx context.Context) (api.ID, error) {
	if err := a.creds.Load(ctx); err != nil {
		return "", err
	}
	c := a.creds.Current()
	a.client.SetToken(c.Token)
	return api.ID(c.SessionID), nil
}

// interactive reports whether stdin is a terminal.
func interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
