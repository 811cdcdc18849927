// Package usermanager is an OpenID Connect relying-party session manager for
// a single user agent. It runs the authorization code flow with PKCE on top
// of golang.org/x/oauth2, verifies ID tokens with github.com/coreos/go-oidc,
// keeps the signed-in User in a pluggable Store and announces lifecycle
// changes on Events.
//
// # Architecture
//
//	┌────────────┐  navigate   ┌─────────────┐
//	│ UserManager│ ──────────► │  Navigator  │ redirect, loopback, custom
//	└────────────┘             └─────────────┘
//	   │      │ state / user
//	   │      ▼
//	   │   ┌────────┐
//	   │   │ Store  │ (memory, redis, …)
//	   │   └────────┘
//	   ▼
//	┌────────┐
//	│ Events │ loaded, unloaded, signed out, renew errors, token timers
//	└────────┘
//
// Flows come in three shapes. Redirect flows (SigninRedirect,
// SignoutRedirect) send the user agent away and complete later in
// SigninCallback or SignoutCallback. Round-trip flows (SigninPopup,
// SigninSilent, SignoutPopup, QuerySessionStatus) hand the provider URL to a
// Navigator that returns the callback URL. Direct flows
// (SigninResourceOwnerCredentials, refresh-token renewal) talk to the token
// endpoint only.
//
// # Usage
//
//	mgr, err := usermanager.New(usermanager.Settings{
//	    Authority:   "https://id.example.com",
//	    ClientID:    "cli",
//	    RedirectURI: "http://127.0.0.1:8765/callback",
//	}, usermanager.WithPopupNavigator(&usermanager.LoopbackNavigator{Open: openBrowser}))
//	if err != nil {
//	    return err
//	}
//	user, err := mgr.SigninPopup(ctx, usermanager.SigninPopupArgs{})
//
// Automatic silent renew subscribes to AccessTokenExpiring and calls
// SigninSilent; failures are raised as SilentRenewError. A Sweeper clears
// abandoned request state from shared stores.
package usermanager
