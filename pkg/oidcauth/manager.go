package oidcauth

import (
	"context"
	"net/url"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

// UserManager is the session manager a Provider drives.
// *usermanager.UserManager is the default implementation.
type UserManager interface {
	Settings() usermanager.Settings
	// Events may return nil when the manager emits no events.
	Events() *usermanager.Events

	GetUser(ctx context.Context) (*usermanager.User, error)
	RemoveUser(ctx context.Context) error
	SigninCallback(ctx context.Context, loc *url.URL) (*usermanager.User, error)
	SignoutCallback(ctx context.Context, loc *url.URL) (*usermanager.SignoutResponse, error)

	SigninPopup(ctx context.Context, args usermanager.SigninPopupArgs) (*usermanager.User, error)
	SigninSilent(ctx context.Context, args usermanager.SigninSilentArgs) (*usermanager.User, error)
	SigninRedirect(ctx context.Context, args usermanager.SigninRedirectArgs) error
	SigninResourceOwnerCredentials(ctx context.Context, args usermanager.ResourceOwnerCredentialsArgs) (*usermanager.User, error)
	SignoutPopup(ctx context.Context, args usermanager.SignoutPopupArgs) (*usermanager.SignoutResponse, error)
	SignoutRedirect(ctx context.Context, args usermanager.SignoutRedirectArgs) error
	SignoutSilent(ctx context.Context, args usermanager.SignoutSilentArgs) error

	ClearStaleState(ctx context.Context) error
	QuerySessionStatus(ctx context.Context, args usermanager.QuerySessionStatusArgs) (*usermanager.SessionStatus, error)
	RevokeTokens(ctx context.Context, types ...usermanager.TokenType) error
	StartSilentRenew()
	StopSilentRenew()
}

var _ UserManager = (*usermanager.UserManager)(nil)

// placeholder stands in for a real manager where none can run. It exposes
// the settings and rejects every operation.
type placeholder struct {
	settings usermanager.Settings
}

var _ UserManager = placeholder{}

func unsupported(method string) error {
	return &UnsupportedContextError{Method: method}
}

func (p placeholder) Settings() usermanager.Settings {
	return p.settings
}

func (placeholder) Events() *usermanager.Events {
	return nil
}

func (placeholder) GetUser(context.Context) (*usermanager.User, error) {
	return nil, unsupported("getUser")
}

func (placeholder) RemoveUser(context.Context) error {
	return unsupported("removeUser")
}

func (placeholder) SigninCallback(context.Context, *url.URL) (*usermanager.User, error) {
	return nil, unsupported("signinCallback")
}

func (placeholder) SignoutCallback(context.Context, *url.URL) (*usermanager.SignoutResponse, error) {
	return nil, unsupported("signoutCallback")
}

func (placeholder) SigninPopup(context.Context, usermanager.SigninPopupArgs) (*usermanager.User, error) {
	return nil, unsupported(string(NavigatorSigninPopup))
}

func (placeholder) SigninSilent(context.Context, usermanager.SigninSilentArgs) (*usermanager.User, error) {
	return nil, unsupported(string(NavigatorSigninSilent))
}

func (placeholder) SigninRedirect(context.Context, usermanager.SigninRedirectArgs) error {
	return unsupported(string(NavigatorSigninRedirect))
}

func (placeholder) SigninResourceOwnerCredentials(context.Context, usermanager.ResourceOwnerCredentialsArgs) (*usermanager.User, error) {
	return nil, unsupported(string(NavigatorSigninResourceOwnerCredentials))
}

func (placeholder) SignoutPopup(context.Context, usermanager.SignoutPopupArgs) (*usermanager.SignoutResponse, error) {
	return nil, unsupported(string(NavigatorSignoutPopup))
}

func (placeholder) SignoutRedirect(context.Context, usermanager.SignoutRedirectArgs) error {
	return unsupported(string(NavigatorSignoutRedirect))
}

func (placeholder) SignoutSilent(context.Context, usermanager.SignoutSilentArgs) error {
	return unsupported(string(NavigatorSignoutSilent))
}

func (placeholder) ClearStaleState(context.Context) error {
	return unsupported("clearStaleState")
}

func (placeholder) QuerySessionStatus(context.Context, usermanager.QuerySessionStatusArgs) (*usermanager.SessionStatus, error) {
	return nil, unsupported("querySessionStatus")
}

func (placeholder) RevokeTokens(context.Context, ...usermanager.TokenType) error {
	return unsupported("revokeTokens")
}

// StartSilentRenew and StopSilentRenew cannot report failure; Auth checks
// for the placeholder before calling them.
func (placeholder) StartSilentRenew() {}

func (placeholder) StopSilentRenew() {}
