package usermanager

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
)

// SignoutArgs are per-request end-session parameters.
type SignoutArgs struct {
	// IDTokenHint defaults to the stored user's id_token.
	IDTokenHint           string
	PostLogoutRedirectURI string
	ExtraQueryParams      map[string]string
	URLState              string
}

type (
	SignoutRedirectArgs SignoutArgs
	SignoutPopupArgs    SignoutArgs
	SignoutSilentArgs   SignoutArgs
)

// SignoutResponse is the parsed end-session callback.
type SignoutResponse struct {
	State    string
	URLState string
}

// SignoutRedirect removes the local user and sends the user agent to the
// provider's end-session endpoint through the redirect navigator.
func (m *UserManager) SignoutRedirect(ctx context.Context, args SignoutRedirectArgs) error {
	if m.redirectNav == nil {
		return ErrNavigatorUnavailable
	}
	params, err := m.signoutStart(ctx, kindSignoutRedirect, SignoutArgs(args), m.settings.PostLogoutRedirectURI)
	if err != nil {
		return err
	}
	_, err = m.redirectNav.Navigate(ctx, params)
	return err
}

// SignoutPopup runs the end-session round trip through the popup navigator.
func (m *UserManager) SignoutPopup(ctx context.Context, args SignoutPopupArgs) (*SignoutResponse, error) {
	if m.popupNav == nil {
		return nil, ErrNavigatorUnavailable
	}
	params, err := m.signoutStart(ctx, kindSignoutPopup, SignoutArgs(args), cmp.Or(m.settings.PostLogoutRedirectURI, m.settings.popupRedirectURI()))
	if err != nil {
		return nil, err
	}
	cb, err := m.popupNav.Navigate(ctx, params)
	if err != nil {
		return nil, err
	}
	return m.SignoutCallback(ctx, cb)
}

// SignoutSilent runs the end-session round trip through the silent navigator.
func (m *UserManager) SignoutSilent(ctx context.Context, args SignoutSilentArgs) error {
	if m.silentNav == nil {
		return ErrNavigatorUnavailable
	}
	params, err := m.signoutStart(ctx, kindSignoutSilent, SignoutArgs(args), cmp.Or(m.settings.PostLogoutRedirectURI, m.settings.silentRedirectURI()))
	if err != nil {
		return err
	}
	cb, err := m.silentNav.Navigate(ctx, params)
	if err != nil {
		return err
	}
	_, err = m.SignoutCallback(ctx, cb)
	return err
}

// SignoutCallback processes an end-session response. A response without
// state is accepted as a bare acknowledgement.
func (m *UserManager) SignoutCallback(ctx context.Context, loc *url.URL) (*SignoutResponse, error) {
	params := ResponseParams(loc)
	stateID := params.Get("state")
	if stateID == "" {
		if code := params.Get("error"); code != "" {
			return nil, &ErrorResponse{Code: code, Description: params.Get("error_description"), URI: params.Get("error_uri")}
		}
		return &SignoutResponse{}, nil
	}

	st, err := m.consumeState(ctx, stateID)
	if err != nil {
		return nil, err
	}
	if st.Kind.signin() {
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
	m.logger.DebugContext(ctx, "signout completed", slog.String("kind", string(st.Kind)))
	return &SignoutResponse{State: st.ID, URLState: st.URLState}, nil
}

// signoutStart revokes tokens when configured, removes the local user and
// builds the end-session request.
func (m *UserManager) signoutStart(ctx context.Context, kind requestKind, a SignoutArgs, postLogout string) (NavigateParams, error) {
	d, err := m.discover(ctx)
	if err != nil {
		return NavigateParams{}, err
	}
	if d.meta.EndSessionEndpoint == "" {
		return NavigateParams{}, ErrNoEndSession
	}
	endSession, err := url.Parse(d.meta.EndSessionEndpoint)
	if err != nil {
		return NavigateParams{}, fmt.Errorf("usermanager: parse end_session_endpoint: %w", err)
	}

	u, err := m.loadUser(ctx)
	if err != nil {
		return NavigateParams{}, err
	}
	if u != nil && m.settings.RevokeTokensOnSignout {
		if err := m.revoke(ctx, d, u, m.settings.RevokeTokenTypes); err != nil {
			return NavigateParams{}, err
		}
	}
	if err := m.RemoveUser(ctx); err != nil {
		return NavigateParams{}, err
	}

	q := endSession.Query()
	q.Set("client_id", m.settings.ClientID)
	hint := a.IDTokenHint
	if hint == "" && u != nil {
		hint = u.IDToken
	}
	if hint != "" {
		q.Set("id_token_hint", hint)
	}
	for k, v := range m.settings.ExtraQueryParams {
		q.Set(k, v)
	}
	for k, v := range a.ExtraQueryParams {
		q.Set(k, v)
	}

	params := NavigateParams{RedirectURI: cmp.Or(a.PostLogoutRedirectURI, postLogout)}
	if params.RedirectURI != "" {
		st := &requestState{
			ID:          uuid.NewString(),
			Kind:        kind,
			CreatedAt:   m.now().Unix(),
			ClientID:    m.settings.ClientID,
			Authority:   m.settings.Authority,
			RedirectURI: params.RedirectURI,
			URLState:    a.URLState,
		}
		if err := m.saveState(ctx, st); err != nil {
			return NavigateParams{}, err
		}
		q.Set("post_logout_redirect_uri", params.RedirectURI)
		q.Set("state", st.ID)
		params.State = st.ID
	}
	endSession.RawQuery = q.Encode()
	params.URL = endSession.String()
	return params, nil
}
