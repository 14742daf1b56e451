package credstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Accessor is the single reader and writer of persisted credentials.
type Accessor struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	creds Credentials
}

// NewAccessor wraps store. Call Load before use.
func NewAccessor(store Store, logger *slog.Logger) *Accessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accessor{store: store, logger: logger.With("component", "credstore"), now: time.Now}
}

// Load reads the store. An expired token is cleared from the store.
func (a *Accessor) Load(ctx context.Context) error {
	c, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	if !c.Empty() && c.ExpiresAt.IsZero() {
		if _, exp, ok := TokenClaims(c.Token); ok {
			c.ExpiresAt = exp
		}
	}
	if !c.Empty() && c.Expired(a.now()) {
		a.logger.Info("stored token expired, clearing", "expired_at", c.ExpiresAt)
		if err := a.store.Clear(ctx); err != nil {
			return err
		}
		c = Credentials{}
	}
	a.mu.Lock()
	a.creds = c
	a.mu.Unlock()
	a.logger.Debug("credentials loaded", "token_present", !c.Empty(), "session_id", c.SessionID)
	return nil
}

// Current returns the in-memory credentials.
func (a *Accessor) Current() Credentials {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.creds
}

// Authenticated reports whether a token is held.
func (a *Accessor) Authenticated() bool { return !a.Current().Empty() }

// Login stores the token and session id together.
func (a *Accessor) Login(ctx context.Context, token, sessionID, username string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("credstore: empty token")
	}
	c := Credentials{Token: token, SessionID: sessionID, Username: username}
	if sub, exp, ok := TokenClaims(token); ok {
		c.ExpiresAt = exp
		if c.Username == "" {
			c.Username = sub
		}
	}
	if err := a.store.Save(ctx, c); err != nil {
		return err
	}
	a.mu.Lock()
	a.creds = c
	a.mu.Unlock()
	a.logger.Info("logged in", "username", c.Username, "session_id", sessionID, "token_present", true)
	return nil
}

// SetSession replaces the stored session id of the current login.
func (a *Accessor) SetSession(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	c := a.creds
	a.mu.Unlock()
	if c.Empty() {
		return errors.New("credstore: not logged in")
	}
	c.SessionID = sessionID
	if err := a.store.Save(ctx, c); err != nil {
		return err
	}
	a.mu.Lock()
	a.creds = c
	a.mu.Unlock()
	return nil
}

// Logout clears the token and session id together.
func (a *Accessor) Logout(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	a.creds = Credentials{}
	a.mu.Unlock()
	a.logger.Info("logged out")
	return nil
}

// Close releases the store.
func (a *Accessor) Close() error { return a.store.Close() }

var (
	defaultMu       sync.Mutex
	defaultAccessor *Accessor
)

// Init opens the process-wide accessor over store and reads it.
func Init(ctx context.Context, store Store, logger *slog.Logger) (*Accessor, error) {
	a := NewAccessor(store, logger)
	if err := a.Load(ctx); err != nil {
		return nil, fmt.Errorf("credstore: init: %w", err)
	}
	defaultMu.Lock()
	prev := defaultAccessor
	defaultAccessor = a
	defaultMu.Unlock()
	if prev != nil && prev != a {
		_ = prev.Close()
	}
	return a, nil
}

// Teardown closes the process-wide accessor.
func Teardown() error {
	defaultMu.Lock()
	a := defaultAccessor
	defaultAccessor = nil
	defaultMu.Unlock()
	if a == nil {
		return nil
	}
	return a.Close()
}
