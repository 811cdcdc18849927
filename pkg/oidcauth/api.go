package oidcauth

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

// Auth is an immutable snapshot of the provider state merged with the
// operations of its manager. Methods act on the live provider, so a stale
// snapshot still drives the current session.
//
// Navigator methods never return manager failures: they record them in
// State.Error and return a zero result. Their error result is reserved for
// *UnsupportedContextError.
type Auth struct {
	State

	p *Provider
}

func (a *Auth) Settings() usermanager.Settings {
	return a.p.manager.Settings()
}

// Events returns the manager event hub, or nil when the manager has none.
func (a *Auth) Events() *usermanager.Events {
	return a.p.manager.Events()
}

func (a *Auth) SigninPopup(ctx context.Context, args usermanager.SigninPopupArgs) (*usermanager.User, error) {
	return wrapNavigator(ctx, a.p, NavigatorSigninPopup, args, a.p.manager.SigninPopup)
}

func (a *Auth) SigninSilent(ctx context.Context, args usermanager.SigninSilentArgs) (*usermanager.User, error) {
	return wrapNavigator(ctx, a.p, NavigatorSigninSilent, args, a.p.manager.SigninSilent)
}

func (a *Auth) SigninRedirect(ctx context.Context, args usermanager.SigninRedirectArgs) error {
	_, err := wrapNavigator(ctx, a.p, NavigatorSigninRedirect, args, noResult(a.p.manager.SigninRedirect))
	return err
}

func (a *Auth) SigninResourceOwnerCredentials(ctx context.Context, args usermanager.ResourceOwnerCredentialsArgs) (*usermanager.User, error) {
	return wrapNavigator(ctx, a.p, NavigatorSigninResourceOwnerCredentials, args, a.p.manager.SigninResourceOwnerCredentials)
}

func (a *Auth) SignoutPopup(ctx context.Context, args usermanager.SignoutPopupArgs) (*usermanager.SignoutResponse, error) {
	return wrapNavigator(ctx, a.p, NavigatorSignoutPopup, args, a.p.manager.SignoutPopup)
}

func (a *Auth) SignoutRedirect(ctx context.Context, args usermanager.SignoutRedirectArgs) error {
	_, err := wrapNavigator(ctx, a.p, NavigatorSignoutRedirect, args, noResult(a.p.manager.SignoutRedirect))
	return err
}

func (a *Auth) SignoutSilent(ctx context.Context, args usermanager.SignoutSilentArgs) error {
	_, err := wrapNavigator(ctx, a.p, NavigatorSignoutSilent, args, noResult(a.p.manager.SignoutSilent))
	return err
}

// ClearStaleState and the other pass-through methods call the manager
// directly without touching State.
func (a *Auth) ClearStaleState(ctx context.Context) error {
	if !a.p.supported {
		return unsupported("clearStaleState")
	}
	return a.p.manager.ClearStaleState(ctx)
}

func (a *Auth) QuerySessionStatus(ctx context.Context, args usermanager.QuerySessionStatusArgs) (*usermanager.SessionStatus, error) {
	if !a.p.supported {
		return nil, unsupported("querySessionStatus")
	}
	return a.p.manager.QuerySessionStatus(ctx, args)
}

func (a *Auth) RevokeTokens(ctx context.Context, types ...usermanager.TokenType) error {
	if !a.p.supported {
		return unsupported("revokeTokens")
	}
	return a.p.manager.RevokeTokens(ctx, types...)
}

func (a *Auth) StartSilentRenew() error {
	if !a.p.supported {
		return unsupported("startSilentRenew")
	}
	a.p.manager.StartSilentRenew()
	return nil
}

func (a *Auth) StopSilentRenew() error {
	if !a.p.supported {
		return unsupported("stopSilentRenew")
	}
	a.p.manager.StopSilentRenew()
	return nil
}

// RemoveUser removes the user from the manager and then runs the
// WithOnRemoveUser hook. Failures are returned as is and never recorded in
// State.Error.
func (a *Auth) RemoveUser(ctx context.Context) error {
	if !a.p.supported {
		return unsupported("removeUser")
	}
	if err := a.p.manager.RemoveUser(ctx); err != nil {
		return err
	}
	if a.p.onRemoveUser != nil {
		return a.p.onRemoveUser(ctx)
	}
	return nil
}

func noResult[A any](fn func(context.Context, A) error) func(context.Context, A) (struct{}, error) {
	return func(ctx context.Context, args A) (struct{}, error) {
		return struct{}{}, fn(ctx, args)
	}
}

// wrapNavigator brackets call with NAVIGATOR_INIT and NAVIGATOR_CLOSE. A
// failure, returned or panicked, is dispatched as ERROR before the close and
// turned into a zero result.
func wrapNavigator[A, R any](ctx context.Context, p *Provider, name Navigator, args A, call func(context.Context, A) (R, error)) (res R, err error) {
	if !p.supported {
		return res, unsupported(string(name))
	}

	ctx, span := p.tracer.Start(ctx, "oidcauth."+string(name),
		trace.WithAttributes(attribute.String("oidcauth.navigator", string(name))))
	defer span.End()

	p.dispatch(NavigatorInit(name))
	defer p.dispatch(NavigatorClose())

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, fmt.Sprint(r))
			p.dispatch(Failed(navigatorError(name, args, r)))
			var zero R
			res, err = zero, nil
		}
	}()

	out, callErr := call(ctx, args)
	if callErr != nil {
		span.RecordError(callErr)
		span.SetStatus(codes.Error, callErr.Error())
		p.dispatch(Failed(navigatorError(name, args, callErr)))
		return res, nil
	}
	return out, nil
}
