package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "creds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "creds.yaml")),
		"sqlite": sqliteStore,
	}
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			c, err := s.Load(ctx)
			require.NoError(t, err)
			assert.True(t, c.Empty())

			in := Credentials{Token: "tok", SessionID: "5", Username: "alice",
				ExpiresAt: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)}
			require.NoError(t, s.Save(ctx, in))
			out, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, in.Token, out.Token)
			assert.Equal(t, in.SessionID, out.SessionID)
			assert.Equal(t, in.Username, out.Username)
			assert.True(t, in.ExpiresAt.Equal(out.ExpiresAt))

			in.SessionID = "6"
			require.NoError(t, s.Save(ctx, in))
			out, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "6", out.SessionID)

			require.NoError(t, s.Clear(ctx))
			require.NoError(t, s.Clear(ctx))
			out, err = s.Load(ctx)
			require.NoError(t, err)
			assert.True(t, out.Empty())
		})
	}
}

func TestFileStoreIsOwnerOnly(t *testing.T) {
	p := filepath.Join(t.TempDir(), "qs", "credentials.yaml")
	require.NoError(t, NewFileStore(p).Save(context.Background(), Credentials{Token: "t"}))
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	sub, got, ok := TokenClaims(signedToken(t, "alice", exp))
	require.True(t, ok)
	assert.Equal(t, "alice", sub)
	assert.True(t, exp.Equal(got))

	_, _, ok = TokenClaims("opaque-token")
	assert.False(t, ok)
}

func TestAccessorLoginLogoutTogether(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "credentials.yaml"))
	a, err := Init(ctx, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Teardown() })
	assert.False(t, a.Authenticated())

	require.NoError(t, a.Login(ctx, signedToken(t, "alice", time.Now().Add(time.Hour)), "5", ""))
	cur := a.Current()
	assert.Equal(t, "5", cur.SessionID)
	assert.Equal(t, "alice", cur.Username, "username falls back to the token subject")
	assert.False(t, cur.ExpiresAt.IsZero())

	require.NoError(t, a.SetSession(ctx, "6"))
	reloaded := NewAccessor(store, nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, "6", reloaded.Current().SessionID)

	require.NoError(t, a.Logout(ctx))
	assert.Equal(t, Credentials{}, a.Current())
	require.NoError(t, reloaded.Load(ctx))
	assert.True(t, reloaded.Current().Empty())
	assert.Error(t, a.SetSession(ctx, "7"))
}

func TestAccessorClearsExpiredTokenAtLoad(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "credentials.yaml"))
	require.NoError(t, store.Save(ctx, Credentials{
		Token:     signedToken(t, "bob", time.Now().Add(-time.Minute)),
		SessionID: "9",
	}))

	a := NewAccessor(store, nil)
	require.NoError(t, a.Load(ctx))
	assert.False(t, a.Authenticated())
	c, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, c.Empty(), "expired login is removed from disk")
}

func TestFileStoreWatch(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "credentials.yaml"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	ready := make(chan error, 1)
	go func() {
		ready <- store.Watch(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()
	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, store.Save(context.Background(), Credentials{Token: "t"}))

	select {
	case <-changed:
	case err := <-ready:
		require.FailNow(t, "watch exited early", "%v", err)
	case <-time.After(3 * time.Second):
		require.FailNow(t, "no change notification")
	}
	cancel()
	assert.NoError(t, <-ready)
}

func TestOpen(t *testing.T) {
	s, err := Open(KindSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = Open("vault", "x")
	assert.Error(t, err)
}

func TestInitReplacesAccessorAndTeardownIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first, err := Init(ctx, NewFileStore(filepath.Join(dir, "a.yaml")), nil)
	require.NoError(t, err)
	second, err := Init(ctx, NewFileStore(filepath.Join(dir, "b.yaml")), nil)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	require.NoError(t, Teardown())
	require.NoError(t, Teardown())
}
