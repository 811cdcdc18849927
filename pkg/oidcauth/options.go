package oidcauth

import (
	"context"
	"log/slog"
	"net/url"

	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

// Option configures a Provider.
type Option func(*Provider)

// WithUserManager uses an existing manager. The caller keeps ownership: the
// provider never stops or cleans it up.
func WithUserManager(m UserManager) Option {
	return func(p *Provider) {
		if m != nil {
			p.manager = m
		}
	}
}

// WithSettings makes the provider build and own a usermanager.UserManager.
// An owned manager has silent renew stopped and stale state cleared on
// Unmount.
func WithSettings(s usermanager.Settings, opts ...usermanager.Option) Option {
	return func(p *Provider) {
		p.settings = &s
		p.managerOpts = opts
	}
}

// WithRuntimeCheck decides whether a real manager can run. When check
// returns false a settings-configured provider uses a placeholder whose
// methods all return *UnsupportedContextError.
func WithRuntimeCheck(check func() bool) Option {
	return func(p *Provider) {
		p.runtimeCheck = check
	}
}

// WithLocation supplies the URL inspected for authorization and end-session
// responses during hydration.
func WithLocation(loc func() *url.URL) Option {
	return func(p *Provider) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithOnSigninCallback runs after a sign-in response was processed during
// hydration or by CallbackHandler.
func WithOnSigninCallback(fn func(ctx context.Context, u *usermanager.User) error) Option {
	return func(p *Provider) {
		p.onSigninCallback = fn
	}
}

// WithSkipSigninCallback leaves authorization responses in the location for
// the application to handle.
func WithSkipSigninCallback(skip bool) Option {
	return func(p *Provider) {
		p.skipSigninCallback = skip
	}
}

// WithMatchSignoutCallback decides from the settings whether the location is
// an end-session response to complete during hydration.
func WithMatchSignoutCallback(match func(usermanager.Settings) bool) Option {
	return func(p *Provider) {
		p.matchSignoutCallback = match
	}
}

func WithOnSignoutCallback(fn func(ctx context.Context, resp *usermanager.SignoutResponse) error) Option {
	return func(p *Provider) {
		p.onSignoutCallback = fn
	}
}

// WithOnRemoveUser runs after Auth.RemoveUser removed the user.
func WithOnRemoveUser(fn func(ctx context.Context) error) Option {
	return func(p *Provider) {
		p.onRemoveUser = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer sets the tracer used for navigator spans. Defaults to the
// global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Provider) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithMetrics records state transitions on m.
func WithMetrics(m *Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}
