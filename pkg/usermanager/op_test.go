package usermanager_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

const testClientID = "test-client"

type grant struct {
	nonce     string
	challenge string
	sub       string
}

// fakeProvider is a minimal OpenID provider. ID tokens carry a dummy
// signature; managers under test skip signature checks.
type fakeProvider struct {
	*httptest.Server

	mu       sync.Mutex
	sub      string
	codes    map[string]grant
	refresh  map[string]string
	revoked  []string
	authErr  string
	tokenErr string
	tokenHit int
	down     atomic.Bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	p := &fakeProvider{
		sub:     "user-1",
		codes:   map[string]grant{},
		refresh: map[string]string{},
	}

	r := chi.NewRouter()
	r.Get("/.well-known/openid-configuration", p.discovery)
	r.Post("/token", p.token)
	r.Get("/userinfo", p.userinfo)
	r.Post("/revoke", p.revoke)
	r.Get("/keys", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[]}`))
	})

	p.Server = httptest.NewServer(r)
	t.Cleanup(p.Close)
	return p
}

func (p *fakeProvider) discovery(w http.ResponseWriter, _ *http.Request) {
	if p.down.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                 p.URL,
		"authorization_endpoint": p.URL + "/authorize",
		"token_endpoint":         p.URL + "/token",
		"userinfo_endpoint":      p.URL + "/userinfo",
		"jwks_uri":               p.URL + "/keys",
		"end_session_endpoint":   p.URL + "/logout",
		"revocation_endpoint":    p.URL + "/revoke",
	})
}

func (p *fakeProvider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenHit++

	if p.tokenErr != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": p.tokenErr, "error_description": "rejected"})
		return
	}

	var sub, nonce string
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		g, ok := p.codes[r.PostForm.Get("code")]
		delete(p.codes, r.PostForm.Get("code"))
		if !ok || s256(r.PostForm.Get("code_verifier")) != g.challenge {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		sub, nonce = g.sub, g.nonce
	case "refresh_token":
		s, ok := p.refresh[r.PostForm.Get("refresh_token")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		sub = s
	case "password":
		if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "secret" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		sub = p.sub
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	rt := "rt-" + uuid.NewString()
	p.refresh[rt] = sub
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  "at-" + uuid.NewString(),
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": rt,
		"scope":         "openid profile",
		"id_token":      p.idToken(sub, nonce),
	})
}

func (p *fakeProvider) hits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenHit
}

func (p *fakeProvider) revokedHints() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.revoked...)
}

func (p *fakeProvider) userinfo(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	p.mu.Lock()
	sub := p.sub
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"sub": sub, "email": sub + "@example.com"})
}

func (p *fakeProvider) revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.revoked = append(p.revoked, r.PostForm.Get("token_type_hint"))
	p.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (p *fakeProvider) idToken(sub, nonce string) string {
	now := time.Now()
	claims := map[string]any{
		"iss":  p.URL,
		"sub":  sub,
		"aud":  testClientID,
		"exp":  now.Add(time.Hour).Unix(),
		"iat":  now.Unix(),
		"name": "Test User",
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body, _ := json.Marshal(claims)
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))
}

// authorize plays the user agent at the authorization endpoint and returns
// the callback URL the provider would redirect to.
func (p *fakeProvider) authorize(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	cb, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	resp := url.Values{"state": {q.Get("state")}}
	if p.authErr != "" {
		resp.Set("error", p.authErr)
	} else {
		code := "code-" + uuid.NewString()
		p.codes[code] = grant{nonce: q.Get("nonce"), challenge: q.Get("code_challenge"), sub: p.sub}
		resp.Set("code", code)
		resp.Set("session_state", "sess-1")
	}
	if q.Get("response_mode") == usermanager.ResponseModeFragment {
		cb.Fragment = resp.Encode()
	} else {
		cb.RawQuery = resp.Encode()
	}
	return cb, nil
}

// navigator returns a round-trip navigator backed by authorize and records
// the URLs it was given.
func (p *fakeProvider) navigator(seen *[]string) usermanager.NavigatorFunc {
	return func(_ context.Context, params usermanager.NavigateParams) (*url.URL, error) {
		if seen != nil {
			*seen = append(*seen, params.URL)
		}
		if strings.HasPrefix(params.URL, p.URL+"/logout") {
			return logoutCallback(params)
		}
		return p.authorize(params.URL)
	}
}

func logoutCallback(params usermanager.NavigateParams) (*url.URL, error) {
	cb, err := url.Parse(params.RedirectURI)
	if err != nil {
		return nil, err
	}
	if params.State != "" {
		cb.RawQuery = url.Values{"state": {params.State}}.Encode()
	}
	return cb, nil
}

func (p *fakeProvider) settings() usermanager.Settings {
	return usermanager.Settings{
		Authority:             p.URL,
		ClientID:              testClientID,
		RedirectURI:           "https://app.example.com/callback",
		PostLogoutRedirectURI: "https://app.example.com/",
		Scope:                 "openid profile",
		FilterProtocolClaims:  true,
	}
}

// newManager builds a manager wired to p with signature checks disabled.
func newManager(t *testing.T, p *fakeProvider, settings usermanager.Settings, opts ...usermanager.Option) *usermanager.UserManager {
	t.Helper()
	base := []usermanager.Option{
		usermanager.WithHTTPClient(p.Client()),
		usermanager.WithVerifierConfig(func(c *oidc.Config) { c.InsecureSkipSignatureCheck = true }),
	}
	m, err := usermanager.New(settings, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		m.StopSilentRenew()
		m.Events().Close()
	})
	return m
}

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("encode: %v", err))
	}
}
