// Package credstore persists the login token and the session id issued
// with it. Both are written and cleared together.
package credstore

import (
	"context"
	"fmt"
	"time"
)

// Credentials is the persisted login state.
type Credentials struct {
	Token     string    `yaml:"token"`
	SessionID string    `yaml:"session_id,omitempty"`
	Username  string    `yaml:"username,omitempty"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
}

// Empty reports whether no login is stored.
func (c Credentials) Empty() bool { return c.Token == "" }

// Expired reports whether the token has a known expiry before now.
func (c Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Store is a credential backend.
type Store interface {
	// Load returns the stored credentials; empty Credentials when none.
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, c Credentials) error
	Clear(ctx context.Context) error
	Close() error
}

// Kind names a Store implementation.
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
)

// Open returns the store of the given kind at path.
func Open(kind Kind, path string) (Store, error) {
	switch kind {
	case KindFile, "":
		return NewFileStore(path), nil
	case KindSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown credential store %q (use file or sqlite)", kind)
	}
}
