package oidcauth

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/oidckit/pkg/logger"
)

// CallbackHandler completes a sign-in from the authorization response in the
// request URL, runs the WithOnSigninCallback hook and redirects to the local
// path the sign-in started from, or "/". Failures are recorded in
// State.Error with source signinCallback and answered with 401.
func (p *Provider) CallbackHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !p.supported {
			http.Error(w, unsupported("signinCallback").Error(), http.StatusNotImplemented)
			return
		}
		if !HasAuthParams(r.URL) {
			http.Error(w, "missing authorization response", http.StatusBadRequest)
			return
		}

		u, err := p.manager.SigninCallback(ctx, r.URL)
		if err == nil && p.onSigninCallback != nil {
			err = p.onSigninCallback(ctx, u)
		}
		if err != nil {
			p.logger.WarnContext(ctx, "sign-in callback failed", logger.Error(err))
			p.dispatch(Failed(signinError(err)))
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		target := "/"
		if isLocalPath(u.URLState) {
			target = u.URLState
		}
		p.logger.DebugContext(ctx, "sign-in callback completed", logger.Subject(u.Subject()))
		http.Redirect(w, r, target, http.StatusFound)
	})
}

func isLocalPath(s string) bool {
	return strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") && !strings.HasPrefix(s, "/\\")
}
