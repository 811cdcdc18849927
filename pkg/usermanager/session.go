package usermanager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// SessionStatus describes the provider session of the current user agent.
type SessionStatus struct {
	SessionState string
	Subject      string
}

// QuerySessionStatus asks the provider, with prompt=none and without storing
// anything, whether a session exists. A login_required answer raises
// UserSignedOut before the error is returned.
func (m *UserManager) QuerySessionStatus(ctx context.Context, args QuerySessionStatusArgs) (*SessionStatus, error) {
	if m.silentNav == nil {
		return nil, ErrNavigatorUnavailable
	}
	a := SigninArgs(args)
	a.Prompt = "none"
	u, err := m.signinRoundTrip(ctx, m.silentNav, kindSessionStatus, a, m.settings.silentRedirectURI())
	if err != nil {
		if IsLoginRequired(err) {
			m.events.RaiseUserSignedOut()
		}
		return nil, err
	}
	return &SessionStatus{SessionState: u.SessionState, Subject: u.Subject()}, nil
}

// RevokeTokens revokes the given token types of the stored user at the
// provider and stores the user without them. With no types the configured
// RevokeTokenTypes are used.
func (m *UserManager) RevokeTokens(ctx context.Context, types ...TokenType) error {
	u, err := m.loadUser(ctx)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrNoUser
	}
	d, err := m.discover(ctx)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		types = m.settings.RevokeTokenTypes
	}
	if err := m.revoke(ctx, d, u, types); err != nil {
		return err
	}

	for _, t := range types {
		switch t {
		case TokenTypeAccess:
			u.AccessToken = ""
		case TokenTypeRefresh:
			u.RefreshToken = ""
		}
	}
	if err := m.storeUser(ctx, u); err != nil {
		return err
	}
	m.events.Load(u, false)
	return nil
}

func (m *UserManager) revoke(ctx context.Context, d *discovery, u *User, types []TokenType) error {
	if d.meta.RevocationEndpoint == "" {
		return ErrNoRevocation
	}
	for _, t := range types {
		var token string
		switch t {
		case TokenTypeAccess:
			token = u.AccessToken
		case TokenTypeRefresh:
			token = u.RefreshToken
		}
		if token == "" {
			continue
		}
		if err := m.revokeToken(ctx, d.meta.RevocationEndpoint, token, t); err != nil {
			return err
		}
		m.logger.DebugContext(ctx, "token revoked", slog.String("type", string(t)))
	}
	return nil
}

func (m *UserManager) revokeToken(ctx context.Context, endpoint, token string, t TokenType) error {
	form := url.Values{
		"token":           {token},
		"token_type_hint": {string(t)},
	}
	if m.settings.ClientSecret == "" {
		form.Set("client_id", m.settings.ClientID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("usermanager: build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if m.settings.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(m.settings.ClientID), url.QueryEscape(m.settings.ClientSecret))
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("usermanager: revoke %s: %w", t, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("usermanager: revoke %s: unexpected status %d", t, resp.StatusCode)
	}
	return nil
}
