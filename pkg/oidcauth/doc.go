// Package oidcauth mirrors the session lifecycle of a user manager into a
// small authentication State and re-exposes the manager's operations with
// state bookkeeping and error normalization.
//
// A Provider is the single writer of State. Manager events (user loaded,
// unloaded, signed out, silent renew errors) and navigator results are turned
// into actions, folded by Reduce and published as immutable *Auth snapshots.
// Readers obtain snapshots from Provider.Auth, Provider.Subscribe or, inside
// HTTP handlers, FromContext.
//
// # Lifecycle
//
//	p, err := oidcauth.New(
//	    oidcauth.WithSettings(settings, usermanager.WithPopupNavigator(nav)),
//	    oidcauth.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := p.Mount(ctx); err != nil {
//	    return err
//	}
//	defer p.Unmount(context.Background())
//	<-p.Ready()
//
// Mount subscribes to manager events and hydrates in the background: an
// authorization response in the location is completed, otherwise the stored
// user is loaded, and INITIALISED ends loading. Hydration failures land in
// State.Error with source signinCallback or signoutCallback.
//
// # Navigators
//
// The seven navigator methods of Auth never return manager failures. A
// failure is normalized into an ErrorContext tagged with the navigator name
// and the call arguments, and the method returns a zero result:
//
//	user, _ := p.Auth().SigninPopup(ctx, usermanager.SigninPopupArgs{})
//	if user == nil {
//	    log.Warn("sign-in failed", "error", p.Auth().Error)
//	}
//
// # HTTP
//
// Provider.Middleware puts the current snapshot in the request context,
// RequireAuthentication redirects anonymous requests to the identity
// provider and Provider.CallbackHandler completes the round trip.
//
//	r.Use(p.Middleware)
//	r.Get("/callback", p.CallbackHandler().ServeHTTP)
//	r.With(oidcauth.RequireAuthentication()).Get("/me", me)
package oidcauth
