package oidcauth

import (
	"context"
	"net/http"
)

type authContextKey struct{}

// WithContext stores a snapshot in ctx.
func WithContext(ctx context.Context, a *Auth) context.Context {
	return context.WithValue(ctx, authContextKey{}, a)
}

// FromContext returns the snapshot stored by WithContext or the provider
// middleware.
func FromContext(ctx context.Context) (*Auth, error) {
	a, ok := ctx.Value(authContextKey{}).(*Auth)
	if !ok || a == nil {
		return nil, ErrNoProvider
	}
	return a, nil
}

// MustFromContext is FromContext that panics outside a provider.
func MustFromContext(ctx context.Context) *Auth {
	a, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return a
}

// Source yields the current snapshot. *Provider implements it.
type Source interface {
	Auth() *Auth
}

// WithAuth injects the snapshot current at request time into the request
// context.
func WithAuth(src Source) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithContext(r.Context(), src.Auth())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Middleware is WithAuth for p.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return WithAuth(p)(next)
}
