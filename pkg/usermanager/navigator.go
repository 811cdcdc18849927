package usermanager

import (
	"context"
	"net/http"
	"net/url"
)

// NavigateParams describes a request the user agent must be sent to.
type NavigateParams struct {
	URL          string
	State        string
	RedirectURI  string
	ResponseMode string
}

// Navigator sends the user agent to a provider URL. Round-trip navigators
// (popup, silent) return the callback URL the provider redirected back to;
// one-way navigators (redirect) return nil.
type Navigator interface {
	Navigate(ctx context.Context, params NavigateParams) (*url.URL, error)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, params NavigateParams) (*url.URL, error)

func (f NavigatorFunc) Navigate(ctx context.Context, params NavigateParams) (*url.URL, error) {
	return f(ctx, params)
}

type httpExchangeKey struct{}

type httpExchange struct {
	w http.ResponseWriter
	r *http.Request
}

// WithHTTPExchange stores the in-flight HTTP exchange so that
// HTTPRedirectNavigator can answer it with a redirect.
func WithHTTPExchange(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context {
	return context.WithValue(ctx, httpExchangeKey{}, httpExchange{w: w, r: r})
}

// HTTPRedirectNavigator answers the HTTP exchange found in the context with
// a redirect to the provider.
type HTTPRedirectNavigator struct {
	// Code defaults to http.StatusFound.
	Code int
}

func (n HTTPRedirectNavigator) Navigate(ctx context.Context, params NavigateParams) (*url.URL, error) {
	ex, ok := ctx.Value(httpExchangeKey{}).(httpExchange)
	if !ok {
		return nil, ErrNoHTTPExchange
	}
	code := n.Code
	if code == 0 {
		code = http.StatusFound
	}
	http.Redirect(ex.w, ex.r, params.URL, code)
	return nil, nil
}
