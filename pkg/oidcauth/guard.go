package oidcauth

import (
	"context"
	"net/http"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

type guardConfig struct {
	onRedirecting  templ.Component
	onBeforeSignin func(ctx context.Context) error
	args           usermanager.SigninRedirectArgs
	errorHandler   func(w http.ResponseWriter, r *http.Request, err error)
}

// GuardOption configures RequireAuthentication.
type GuardOption func(*guardConfig)

// WithOnRedirecting renders c while the user is not authenticated yet.
func WithOnRedirecting(c templ.Component) GuardOption {
	return func(g *guardConfig) {
		g.onRedirecting = c
	}
}

// WithOnBeforeSignin runs fn before the redirect. Its error aborts the
// request and is handed to the error handler.
func WithOnBeforeSignin(fn func(ctx context.Context) error) GuardOption {
	return func(g *guardConfig) {
		g.onBeforeSignin = fn
	}
}

// WithSigninRedirectArgs sets extra arguments for the redirect. An empty
// URLState is replaced by the guarded request URI.
func WithSigninRedirectArgs(args usermanager.SigninRedirectArgs) GuardOption {
	return func(g *guardConfig) {
		g.args = args
	}
}

// WithGuardErrorHandler replaces the default 500 response for hook and
// context failures.
func WithGuardErrorHandler(fn func(w http.ResponseWriter, r *http.Request, err error)) GuardOption {
	return func(g *guardConfig) {
		if fn != nil {
			g.errorHandler = fn
		}
	}
}

// RequireAuthentication only lets authenticated requests through. Others
// are redirected to the provider via SigninRedirect, which needs a manager
// configured with usermanager.HTTPRedirectNavigator. While loading, a
// navigator is in flight, or the request itself carries an authorization
// response, the redirect is skipped and the placeholder is rendered.
//
// The *Auth is read from the request context, so the provider middleware
// must run first.
func RequireAuthentication(opts ...GuardOption) func(http.Handler) http.Handler {
	cfg := &guardConfig{
		errorHandler: func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, err := FromContext(r.Context())
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}
			if a.IsAuthenticated {
				next.ServeHTTP(w, r)
				return
			}

			if !a.IsLoading && a.ActiveNavigator == "" && !HasAuthParams(r.URL) {
				if cfg.onBeforeSignin != nil {
					if err := cfg.onBeforeSignin(r.Context()); err != nil {
						cfg.errorHandler(w, r, err)
						return
					}
				}
				args := cfg.args
				if args.URLState == "" {
					args.URLState = r.URL.RequestURI()
				}
				tw := &trackingWriter{ResponseWriter: w}
				ctx := usermanager.WithHTTPExchange(r.Context(), tw, r)
				if err := a.SigninRedirect(ctx, args); err != nil {
					cfg.errorHandler(w, r, err)
					return
				}
				if tw.written {
					return
				}
			}

			status := http.StatusUnauthorized
			if a.IsLoading {
				status = http.StatusServiceUnavailable
				w.Header().Set("Retry-After", "1")
			}
			if cfg.onRedirecting == nil {
				w.WriteHeader(status)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(status)
			_ = cfg.onRedirecting.Render(r.Context(), w)
		})
	}
}

type trackingWriter struct {
	http.ResponseWriter
	written bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.written = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.written = true
	return t.ResponseWriter.Write(b)
}

func (t *trackingWriter) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}
