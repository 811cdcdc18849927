package usermanager

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// SigninArgs are per-request authorization parameters. Empty fields fall
// back to Settings.
type SigninArgs struct {
	RedirectURI      string
	Scope            string
	Prompt           string
	LoginHint        string
	AcrValues        string
	UILocales        string
	MaxAge           int
	ResponseMode     string
	ExtraQueryParams map[string]string
	// URLState is returned untouched on the resulting User.
	URLState string
}

type (
	SigninRedirectArgs     SigninArgs
	SigninPopupArgs        SigninArgs
	SigninSilentArgs       SigninArgs
	QuerySessionStatusArgs SigninArgs
)

// ResourceOwnerCredentialsArgs are the inputs of the password grant.
type ResourceOwnerCredentialsArgs struct {
	Username     string
	Password     string
	SkipUserInfo bool
}

// SigninRedirect sends the user agent to the authorization endpoint through
// the redirect navigator. The flow completes in SigninCallback.
func (m *UserManager) SigninRedirect(ctx context.Context, args SigninRedirectArgs) error {
	if m.redirectNav == nil {
		return ErrNavigatorUnavailable
	}
	d, err := m.discover(ctx)
	if err != nil {
		return err
	}
	authURL, st, err := m.createSigninRequest(ctx, d, kindSigninRedirect, SigninArgs(args), m.settings.RedirectURI)
	if err != nil {
		return err
	}
	_, err = m.redirectNav.Navigate(ctx, navigateParams(authURL, st))
	return err
}

// SigninPopup runs the authorization round trip through the popup navigator
// and returns the signed-in user.
func (m *UserManager) SigninPopup(ctx context.Context, args SigninPopupArgs) (*User, error) {
	if m.popupNav == nil {
		return nil, ErrNavigatorUnavailable
	}
	u, err := m.signinRoundTrip(ctx, m.popupNav, kindSigninPopup, SigninArgs(args), m.settings.popupRedirectURI())
	if err != nil {
		return nil, err
	}
	return m.signinEnd(ctx, u)
}

// SigninSilent renews the session without user interaction, using the
// refresh token when one is stored and a prompt=none round trip through the
// silent navigator otherwise.
func (m *UserManager) SigninSilent(ctx context.Context, args SigninSilentArgs) (*User, error) {
	current, err := m.loadUser(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil && current.RefreshToken != "" {
		return m.useRefreshToken(ctx, current)
	}
	if m.silentNav == nil {
		return nil, ErrNoRefreshToken
	}

	a := SigninArgs(args)
	if a.Prompt == "" {
		a.Prompt = "none"
	}
	u, err := m.signinRoundTrip(ctx, m.silentNav, kindSigninSilent, a, m.settings.silentRedirectURI())
	if err != nil {
		return nil, err
	}
	if current != nil && current.Subject() != "" && u.Subject() != current.Subject() {
		return nil, ErrSubjectMismatch
	}
	return m.signinEnd(ctx, u)
}

// SigninResourceOwnerCredentials signs in with the password grant.
func (m *UserManager) SigninResourceOwnerCredentials(ctx context.Context, args ResourceOwnerCredentialsArgs) (*User, error) {
	d, err := m.discover(ctx)
	if err != nil {
		return nil, err
	}
	tok, err := d.oauth.PasswordCredentialsToken(m.clientContext(ctx), args.Username, args.Password)
	if err != nil {
		return nil, tokenError(err)
	}
	u, err := m.userFromToken(ctx, d, tok, "", nil, m.settings.LoadUserInfo && !args.SkipUserInfo)
	if err != nil {
		return nil, err
	}
	return m.signinEnd(ctx, u)
}

// SigninCallback completes an authorization response found on loc and
// stores the resulting user.
func (m *UserManager) SigninCallback(ctx context.Context, loc *url.URL) (*User, error) {
	u, err := m.completeSignin(ctx, ResponseParams(loc), "")
	if err != nil {
		return nil, err
	}
	return m.signinEnd(ctx, u)
}

func (m *UserManager) signinRoundTrip(ctx context.Context, nav Navigator, kind requestKind, a SigninArgs, redirectURI string) (*User, error) {
	d, err := m.discover(ctx)
	if err != nil {
		return nil, err
	}
	authURL, st, err := m.createSigninRequest(ctx, d, kind, a, redirectURI)
	if err != nil {
		return nil, err
	}
	cb, err := nav.Navigate(ctx, navigateParams(authURL, st))
	if err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, fmt.Errorf("usermanager: %s navigator returned no response", kind)
	}
	return m.completeSignin(ctx, ResponseParams(cb), st.ID)
}

func (m *UserManager) createSigninRequest(ctx context.Context, d *discovery, kind requestKind, a SigninArgs, redirectURI string) (string, *requestState, error) {
	verifier := oauth2.GenerateVerifier()
	st := &requestState{
		ID:           uuid.NewString(),
		Kind:         kind,
		CreatedAt:    m.now().Unix(),
		ClientID:     m.settings.ClientID,
		Authority:    m.settings.Authority,
		RedirectURI:  cmp.Or(a.RedirectURI, redirectURI),
		CodeVerifier: verifier,
		Nonce:        uuid.NewString(),
		Scope:        cmp.Or(a.Scope, m.settings.Scope),
		ResponseMode: cmp.Or(a.ResponseMode, m.settings.ResponseMode),
		URLState:     a.URLState,
		SkipUserInfo: kind == kindSessionStatus,
	}

	cfg := *d.oauth
	cfg.RedirectURL = st.RedirectURI
	cfg.Scopes = strings.Fields(st.Scope)

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", st.Nonce),
	}
	if st.ResponseMode == ResponseModeFragment {
		opts = append(opts, oauth2.SetAuthURLParam("response_mode", ResponseModeFragment))
	}

	extra := map[string]string{
		"prompt":     a.Prompt,
		"login_hint": a.LoginHint,
		"acr_values": a.AcrValues,
		"ui_locales": a.UILocales,
	}
	if a.MaxAge > 0 {
		extra["max_age"] = strconv.Itoa(a.MaxAge)
	}
	for k, v := range m.settings.ExtraQueryParams {
		extra[k] = v
	}
	for k, v := range a.ExtraQueryParams {
		extra[k] = v
	}
	for k, v := range extra {
		if v != "" {
			opts = append(opts, oauth2.SetAuthURLParam(k, v))
		}
	}

	if err := m.saveState(ctx, st); err != nil {
		return "", nil, err
	}
	return cfg.AuthCodeURL(st.ID, opts...), st, nil
}

// completeSignin validates an authorization response and exchanges its code.
// A non-empty wantState pins the response to the request that was just sent.
func (m *UserManager) completeSignin(ctx context.Context, params url.Values, wantState string) (*User, error) {
	stateID := params.Get("state")
	if wantState != "" && stateID != wantState {
		return nil, ErrStateNotFound
	}
	st, err := m.consumeState(ctx, stateID)
	if err != nil {
		return nil, err
	}
	if !st.Kind.signin() {
		return nil, ErrUnexpectedRequest
	}
	if code := params.Get("error"); code != "" {
		return nil, &ErrorResponse{
			Code:        code,
			Description: params.Get("error_description"),
			URI:         params.Get("error_uri"),
			URLState:    st.URLState,
		}
	}
	code := params.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	d, err := m.discover(ctx)
	if err != nil {
		return nil, err
	}
	cfg := *d.oauth
	cfg.RedirectURL = st.RedirectURI
	tok, err := cfg.Exchange(m.clientContext(ctx), code, oauth2.VerifierOption(st.CodeVerifier))
	if err != nil {
		return nil, tokenError(err)
	}

	u, err := m.userFromToken(ctx, d, tok, st.Nonce, nil, m.settings.LoadUserInfo && !st.SkipUserInfo)
	if err != nil {
		return nil, err
	}
	u.SessionState = params.Get("session_state")
	u.URLState = st.URLState
	return u, nil
}

func (m *UserManager) useRefreshToken(ctx context.Context, current *User) (*User, error) {
	v, err, _ := m.refresh.Do(current.RefreshToken, func() (any, error) {
		d, err := m.discover(ctx)
		if err != nil {
			return nil, err
		}
		src := d.oauth.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
		tok, err := src.Token()
		if err != nil {
			return nil, tokenError(err)
		}
		u, err := m.userFromToken(ctx, d, tok, "", current, false)
		if err != nil {
			return nil, err
		}
		return m.signinEnd(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return v.(*User), nil
}

// userFromToken builds a User from a token response. When the response has
// no id_token (refresh without openid), identity is carried over from prev.
func (m *UserManager) userFromToken(ctx context.Context, d *discovery, tok *oauth2.Token, nonce string, prev *User, loadUserInfo bool) (*User, error) {
	u := &User{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		u.ExpiresAt = tok.Expiry.Unix()
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		u.Scope = scope
	} else if prev != nil {
		u.Scope = prev.Scope
	}

	rawID, _ := tok.Extra("id_token").(string)
	switch {
	case rawID != "":
		idt, err := d.verifier.Verify(m.clientContext(ctx), rawID)
		if err != nil {
			return nil, fmt.Errorf("usermanager: verify id_token: %w", err)
		}
		if nonce != "" && idt.Nonce != nonce {
			return nil, ErrNonceMismatch
		}
		if prev != nil && prev.Subject() != "" && idt.Subject != prev.Subject() {
			return nil, ErrSubjectMismatch
		}
		var claims map[string]any
		if err := idt.Claims(&claims); err != nil {
			return nil, fmt.Errorf("usermanager: decode id_token claims: %w", err)
		}
		if m.settings.FilterProtocolClaims {
			claims = filterProtocolClaims(claims)
		}
		u.IDToken = rawID
		u.Profile = claims
	case prev != nil:
		p := prev.Clone()
		u.IDToken = p.IDToken
		u.Profile = p.Profile
		u.SessionState = p.SessionState
	default:
		u.Profile = map[string]any{}
	}
	if u.RefreshToken == "" && prev != nil {
		u.RefreshToken = prev.RefreshToken
	}

	if loadUserInfo {
		info, err := d.provider.UserInfo(m.clientContext(ctx), oauth2.StaticTokenSource(tok))
		if err != nil {
			return nil, fmt.Errorf("usermanager: load userinfo: %w", err)
		}
		if sub := u.Subject(); sub != "" && info.Subject != sub {
			return nil, ErrSubjectMismatch
		}
		var claims map[string]any
		if err := info.Claims(&claims); err != nil {
			return nil, fmt.Errorf("usermanager: decode userinfo claims: %w", err)
		}
		for k, v := range claims {
			u.Profile[k] = v
		}
	}
	return u, nil
}

func navigateParams(rawURL string, st *requestState) NavigateParams {
	return NavigateParams{
		URL:          rawURL,
		State:        st.ID,
		RedirectURI:  st.RedirectURI,
		ResponseMode: st.ResponseMode,
	}
}

func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		return &ErrorResponse{Code: re.ErrorCode, Description: re.ErrorDescription, URI: re.ErrorURI}
	}
	return fmt.Errorf("usermanager: token request: %w", err)
}
