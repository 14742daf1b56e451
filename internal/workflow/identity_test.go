package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
)

func TestResolvePrecedence(t *testing.T) {
	_, ok := Resolve("", "")
	assert.False(t, ok)

	got, ok := Resolve("", "7")
	require.True(t, ok)
	assert.Equal(t, ActiveSession{ID: "7", Provenance: Anonymous}, got)

	got, ok = Resolve("3", "7")
	require.True(t, ok)
	assert.Equal(t, ActiveSession{ID: "3", Provenance: Authenticated}, got)
}

func TestResolveNeverReturnsAnonymousWhileAuthenticated(t *testing.T) {
	// Walk every transition over small id alphabets.
	auths := []api.ID{"", "a1", "a2"}
	locals := []api.ID{"", "l1", "l2"}
	for _, a := range auths {
		for _, l := range locals {
			got, ok := Resolve(a, l)
			if a.IsZero() {
				continue
			}
			require.True(t, ok)
			assert.Equal(t, a, got.ID)
			assert.Equal(t, Authenticated, got.Provenance)
		}
	}
}

func TestAnonymousUploadWhileAuthenticatedKeepsAuthIdentity(t *testing.T) {
	fb := &fakeBackend{}
	c := NewController(Options{Backend: fb})
	c.SetAuthenticated("5")

	res, err := c.Upload(context.Background(), UploadInput{FileName: "sales.csv", Content: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, api.ID("5"), res.SessionID)

	st := c.Snapshot()
	assert.Equal(t, api.ID("5"), st.Active.ID)
	assert.Equal(t, Authenticated, st.Active.Provenance)
	assert.True(t, st.LocalSession.IsZero(), "upload while logged in must not fork identity")
	assert.Equal(t, api.ID("1"), st.DatasetID)
}

func TestSessionSwitchClearsCatalogAndResults(t *testing.T) {
	fb := &fakeBackend{
		listFn: func(sid api.ID) ([]api.Dataset, error) {
			return []api.Dataset{{ID: "1", Name: "sales-" + sid.String(), SessionID: sid}}, nil
		},
	}
	c := NewController(Options{Backend: fb})
	c.SetLocalSession("10")
	require.NoError(t, c.RefreshCatalog(context.Background()))
	require.NoError(t, c.SelectDataset("1"))
	require.NoError(t, c.Run(context.Background()))

	st := c.Snapshot()
	require.Len(t, st.Catalog, 1)
	require.False(t, st.Results.Empty())

	changed := c.SetAuthenticated("20")
	assert.True(t, changed)
	st = c.Snapshot()
	assert.Empty(t, st.Catalog)
	assert.True(t, st.Results.Empty())
	assert.True(t, st.DatasetID.IsZero())
	assert.Equal(t, DefaultConfig(), st.Config)

	require.NoError(t, c.RefreshCatalog(context.Background()))
	st = c.Snapshot()
	require.Len(t, st.Catalog, 1)
	assert.Equal(t, "sales-20", st.Catalog[0].Name)
}

func TestSelectSessionWhileAuthenticatedStaysAuthenticated(t *testing.T) {
	c := NewController(Options{Backend: &fakeBackend{}})
	c.SetLocalSession("9")
	c.SetAuthenticated("5")

	active, err := c.SelectSession("6")
	require.NoError(t, err)
	assert.Equal(t, ActiveSession{ID: "6", Provenance: Authenticated}, active)

	c.Logout()
	_, ok := c.Active()
	assert.False(t, ok, "logout clears both identities")
}

func TestSameSessionDoesNotClear(t *testing.T) {
	c := NewController(Options{Backend: &fakeBackend{}})
	c.SetLocalSession("9")
	require.NoError(t, c.SelectDataset("1"))
	assert.False(t, c.SetLocalSession("9"))
	assert.Equal(t, api.ID("1"), c.Snapshot().DatasetID)
}
