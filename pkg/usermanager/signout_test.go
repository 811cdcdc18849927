package usermanager_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

func signedIn(t *testing.T, m *usermanager.UserManager) *usermanager.User {
	t.Helper()
	u, err := m.SigninResourceOwnerCredentials(context.Background(), usermanager.ResourceOwnerCredentialsArgs{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	return u
}

func TestUserManager_SignoutRedirect(t *testing.T) {
	t.Parallel()

	t.Run("removes the user and redirects to end session", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		m := newManager(t, p, p.settings())
		user := signedIn(t, m)

		var unloaded atomic.Int32
		m.Events().AddUserUnloaded(func() { unloaded.Add(1) })

		rec := httptest.NewRecorder()
		ctx := usermanager.WithHTTPExchange(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/logout", nil))
		require.NoError(t, m.SignoutRedirect(ctx, usermanager.SignoutRedirectArgs{URLState: "bye"}))

		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/logout", loc.Path)
		q := loc.Query()
		assert.Equal(t, user.IDToken, q.Get("id_token_hint"))
		assert.Equal(t, "https://app.example.com/", q.Get("post_logout_redirect_uri"))
		assert.Equal(t, testClientID, q.Get("client_id"))
		require.NotEmpty(t, q.Get("state"))
		assert.Equal(t, int32(1), unloaded.Load())

		stored, err := m.GetUser(context.Background())
		require.NoError(t, err)
		assert.Nil(t, stored)

		resp, err := m.SignoutCallback(context.Background(), &url.URL{Path: "/", RawQuery: "state=" + q.Get("state")})
		require.NoError(t, err)
		assert.Equal(t, "bye", resp.URLState)
	})

	t.Run("revokes tokens when configured", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		settings := p.settings()
		settings.RevokeTokensOnSignout = true
		m := newManager(t, p, settings)
		signedIn(t, m)

		rec := httptest.NewRecorder()
		ctx := usermanager.WithHTTPExchange(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/logout", nil))
		require.NoError(t, m.SignoutRedirect(ctx, usermanager.SignoutRedirectArgs{}))
		assert.Equal(t, []string{"access_token", "refresh_token"}, p.revokedHints())
	})

	t.Run("no end session endpoint", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		settings := p.settings()
		settings.Metadata = usermanager.Metadata{
			Issuer:                p.URL,
			AuthorizationEndpoint: p.URL + "/authorize",
			TokenEndpoint:         p.URL + "/token",
			JWKSURI:               p.URL + "/keys",
		}
		m := newManager(t, p, settings)

		rec := httptest.NewRecorder()
		ctx := usermanager.WithHTTPExchange(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/logout", nil))
		err := m.SignoutRedirect(ctx, usermanager.SignoutRedirectArgs{})
		assert.ErrorIs(t, err, usermanager.ErrNoEndSession)
	})
}

func TestUserManager_SignoutPopup(t *testing.T) {
	t.Parallel()
	p := newFakeProvider(t)
	m := newManager(t, p, p.settings(), usermanager.WithPopupNavigator(p.navigator(nil)))
	signedIn(t, m)

	resp, err := m.SignoutPopup(context.Background(), usermanager.SignoutPopupArgs{URLState: "popup"})
	require.NoError(t, err)
	assert.Equal(t, "popup", resp.URLState)
	assert.NotEmpty(t, resp.State)
}

func TestUserManager_SignoutSilent(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		m := newManager(t, p, p.settings(), usermanager.WithSilentNavigator(p.navigator(nil)))
		signedIn(t, m)

		require.NoError(t, m.SignoutSilent(context.Background(), usermanager.SignoutSilentArgs{}))
		stored, err := m.GetUser(context.Background())
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("no silent navigator", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		m := newManager(t, p, p.settings())
		err := m.SignoutSilent(context.Background(), usermanager.SignoutSilentArgs{})
		assert.ErrorIs(t, err, usermanager.ErrNavigatorUnavailable)
	})
}

func TestUserManager_SignoutCallback(t *testing.T) {
	t.Parallel()
	p := newFakeProvider(t)
	m := newManager(t, p, p.settings())
	ctx := context.Background()

	t.Run("without state", func(t *testing.T) {
		resp, err := m.SignoutCallback(ctx, &url.URL{Path: "/"})
		require.NoError(t, err)
		assert.Empty(t, resp.State)
	})

	t.Run("error without state", func(t *testing.T) {
		_, err := m.SignoutCallback(ctx, &url.URL{Path: "/", RawQuery: "error=server_error"})
		var er *usermanager.ErrorResponse
		require.ErrorAs(t, err, &er)
		assert.Equal(t, "server_error", er.Code)
	})

	t.Run("rejects sign-in state", func(t *testing.T) {
		rec := httptest.NewRecorder()
		exCtx := usermanager.WithHTTPExchange(ctx, rec, httptest.NewRequest(http.MethodGet, "/login", nil))
		require.NoError(t, m.SigninRedirect(exCtx, usermanager.SigninRedirectArgs{}))
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)

		_, err = m.SignoutCallback(ctx, &url.URL{Path: "/", RawQuery: "state=" + loc.Query().Get("state")})
		assert.ErrorIs(t, err, usermanager.ErrUnexpectedRequest)
	})
}
