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

func TestUserManager_SigninPopup(t *testing.T) {
	t.Parallel()

	t.Run("completes the round trip and stores the user", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		var seen []string
		m := newManager(t, p, p.settings(), usermanager.WithPopupNavigator(p.navigator(&seen)))

		var loaded atomic.Int32
		m.Events().AddUserLoaded(func(*usermanager.User) { loaded.Add(1) })

		ctx := context.Background()
		user, err := m.SigninPopup(ctx, usermanager.SigninPopupArgs{
			URLState:         "/dashboard",
			Prompt:           "login",
			ExtraQueryParams: map[string]string{"audience": "api"},
		})
		require.NoError(t, err)

		assert.Equal(t, "user-1", user.Subject())
		assert.Equal(t, "Test User", user.Profile["name"])
		assert.NotContains(t, user.Profile, "iss")
		assert.NotContains(t, user.Profile, "nonce")
		assert.Equal(t, "/dashboard", user.URLState)
		assert.Equal(t, "sess-1", user.SessionState)
		assert.NotEmpty(t, user.AccessToken)
		assert.NotEmpty(t, user.RefreshToken)
		assert.False(t, user.Expired())
		assert.Equal(t, int32(1), loaded.Load())

		stored, err := m.GetUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, user.AccessToken, stored.AccessToken)

		require.Len(t, seen, 1)
		authURL, err := url.Parse(seen[0])
		require.NoError(t, err)
		q := authURL.Query()
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.NotEmpty(t, q.Get("nonce"))
		assert.Equal(t, "login", q.Get("prompt"))
		assert.Equal(t, "api", q.Get("audience"))
		assert.Equal(t, "openid profile", q.Get("scope"))
	})

	t.Run("provider error becomes ErrorResponse", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		p.authErr = "access_denied"
		m := newManager(t, p, p.settings(), usermanager.WithPopupNavigator(p.navigator(nil)))

		_, err := m.SigninPopup(context.Background(), usermanager.SigninPopupArgs{URLState: "x"})
		var er *usermanager.ErrorResponse
		require.ErrorAs(t, err, &er)
		assert.Equal(t, "access_denied", er.Code)
		assert.Equal(t, "x", er.URLState)
		assert.Equal(t, "ErrorResponse", er.Name())
	})

	t.Run("no popup navigator", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		m := newManager(t, p, p.settings())

		_, err := m.SigninPopup(context.Background(), usermanager.SigninPopupArgs{})
		assert.ErrorIs(t, err, usermanager.ErrNavigatorUnavailable)
	})

	t.Run("loads userinfo when enabled", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		settings := p.settings()
		settings.LoadUserInfo = true
		m := newManager(t, p, settings, usermanager.WithPopupNavigator(p.navigator(nil)))

		user, err := m.SigninPopup(context.Background(), usermanager.SigninPopupArgs{})
		require.NoError(t, err)
		assert.Equal(t, "user-1@example.com", user.Profile["email"])
	})

	t.Run("fragment response mode", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		settings := p.settings()
		settings.ResponseMode = usermanager.ResponseModeFragment
		m := newManager(t, p, settings, usermanager.WithPopupNavigator(p.navigator(nil)))

		user, err := m.SigninPopup(context.Background(), usermanager.SigninPopupArgs{})
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.Subject())
	})
}

func TestUserManager_SigninRedirect(t *testing.T) {
	t.Parallel()

	t.Run("redirects and completes in the callback", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		m := newManager(t, p, p.settings())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		ctx := usermanager.WithHTTPExchange(context.Background(), rec, req)

		require.NoError(t, m.SigninRedirect(ctx, usermanager.SigninRedirectArgs{URLState: "/after"}))
		assert.Equal(t, http.StatusFound, rec.Code)

		cb, err := p.authorize(rec.Header().Get("Location"))
		require.NoError(t, err)

		user, err := m.SigninCallback(context.Background(), cb)
		require.NoError(t, err)
		assert.Equal(t, "/after", user.URLState)

		_, err = m.SigninCallback(context.Background(), cb)
		assert.ErrorIs(t, err, usermanager.ErrStateNotFound)
	})

	t.Run("needs an http exchange", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		m := newManager(t, p, p.settings())

		err := m.SigninRedirect(context.Background(), usermanager.SigninRedirectArgs{})
		assert.ErrorIs(t, err, usermanager.ErrNoHTTPExchange)
	})
}

func TestUserManager_SigninCallback(t *testing.T) {
	t.Parallel()
	p := newFakeProvider(t)
	m := newManager(t, p, p.settings())
	ctx := context.Background()

	t.Run("missing state", func(t *testing.T) {
		_, err := m.SigninCallback(ctx, &url.URL{Path: "/callback", RawQuery: "code=abc"})
		assert.ErrorIs(t, err, usermanager.ErrMissingState)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := m.SigninCallback(ctx, &url.URL{Path: "/callback", RawQuery: "code=abc&state=nope"})
		assert.ErrorIs(t, err, usermanager.ErrStateNotFound)
	})
}

func TestUserManager_SigninSilent(t *testing.T) {
	t.Parallel()

	t.Run("uses the refresh token", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		m := newManager(t, p, p.settings())
		ctx := context.Background()

		first, err := m.SigninResourceOwnerCredentials(ctx, usermanager.ResourceOwnerCredentialsArgs{Username: "alice", Password: "secret"})
		require.NoError(t, err)

		renewed, err := m.SigninSilent(ctx, usermanager.SigninSilentArgs{})
		require.NoError(t, err)
		assert.NotEqual(t, first.AccessToken, renewed.AccessToken)
		assert.Equal(t, first.Subject(), renewed.Subject())
		assert.Equal(t, 2, p.hits())
	})

	t.Run("falls back to prompt=none", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		var seen []string
		m := newManager(t, p, p.settings(), usermanager.WithSilentNavigator(p.navigator(&seen)))

		user, err := m.SigninSilent(context.Background(), usermanager.SigninSilentArgs{})
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.Subject())

		require.Len(t, seen, 1)
		authURL, err := url.Parse(seen[0])
		require.NoError(t, err)
		assert.Equal(t, "none", authURL.Query().Get("prompt"))
	})

	t.Run("no refresh token and no navigator", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		m := newManager(t, p, p.settings())

		_, err := m.SigninSilent(context.Background(), usermanager.SigninSilentArgs{})
		assert.ErrorIs(t, err, usermanager.ErrNoRefreshToken)
	})

	t.Run("rejects a different subject", func(t *testing.T) {
		t.Parallel()
		p := newFakeProvider(t)
		m := newManager(t, p, p.settings(),
			usermanager.WithPopupNavigator(p.navigator(nil)),
			usermanager.WithSilentNavigator(p.navigator(nil)),
		)
		ctx := context.Background()

		_, err := m.SigninPopup(ctx, usermanager.SigninPopupArgs{})
		require.NoError(t, err)
		require.NoError(t, m.RevokeTokens(ctx, usermanager.TokenTypeRefresh))

		p.mu.Lock()
		p.sub = "someone-else"
		p.mu.Unlock()

		_, err = m.SigninSilent(ctx, usermanager.SigninSilentArgs{})
		assert.ErrorIs(t, err, usermanager.ErrSubjectMismatch)
	})
}

func TestUserManager_SigninResourceOwnerCredentials(t *testing.T) {
	t.Parallel()
	p := newFakeProvider(t)
	m := newManager(t, p, p.settings())
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		user, err := m.SigninResourceOwnerCredentials(ctx, usermanager.ResourceOwnerCredentialsArgs{Username: "alice", Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.Subject())
		assert.Equal(t, []string{"openid", "profile"}, user.Scopes())
	})

	t.Run("invalid credentials", func(t *testing.T) {
		_, err := m.SigninResourceOwnerCredentials(ctx, usermanager.ResourceOwnerCredentialsArgs{Username: "alice", Password: "wrong"})
		var er *usermanager.ErrorResponse
		require.ErrorAs(t, err, &er)
		assert.Equal(t, "invalid_grant", er.Code)
	})
}
