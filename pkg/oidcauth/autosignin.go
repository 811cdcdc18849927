package oidcauth

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/dmitrymomot/oidckit/pkg/logger"
	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

// SigninMethod selects the navigator AutoSignin invokes.
type SigninMethod string

const (
	SigninMethodRedirect SigninMethod = SigninMethod(NavigatorSigninRedirect)
	SigninMethodPopup    SigninMethod = SigninMethod(NavigatorSigninPopup)
)

// AutoSigninStatus is the restricted view returned by AutoSignin.Use.
type AutoSigninStatus struct {
	IsAuthenticated bool
	IsLoading       bool
	Error           *ErrorContext
}

// AutoSigninOption configures an AutoSignin.
type AutoSigninOption func(*AutoSignin)

// WithSigninMethod picks the sign-in navigator. Defaults to
// SigninMethodRedirect. Unknown methods are ignored.
func WithSigninMethod(m SigninMethod) AutoSigninOption {
	return func(s *AutoSignin) {
		if m == SigninMethodRedirect || m == SigninMethodPopup {
			s.method = m
		}
	}
}

// WithBeforeAutoSignin runs fn before the sign-in starts. A failure is
// recorded as the navigator's error and the sign-in is not attempted.
func WithBeforeAutoSignin(fn func(ctx context.Context) error) AutoSigninOption {
	return func(s *AutoSignin) {
		s.before = fn
	}
}

func WithAutoSigninArgs(args usermanager.SigninArgs) AutoSigninOption {
	return func(s *AutoSignin) {
		s.args = args
	}
}

func WithAutoSigninLogger(l *slog.Logger) AutoSigninOption {
	return func(s *AutoSignin) {
		if l != nil {
			s.logger = l
		}
	}
}

// AutoSignin starts a sign-in once, the first time it sees a snapshot with
// no user, no loading, no navigator in flight and no error. Create one per
// user agent lifetime.
type AutoSignin struct {
	method SigninMethod
	before func(ctx context.Context) error
	args   usermanager.SigninArgs
	logger *slog.Logger

	fired atomic.Bool
	done  chan struct{}
}

func NewAutoSignin(opts ...AutoSigninOption) *AutoSignin {
	s := &AutoSignin{
		method: SigninMethodRedirect,
		logger: logger.Discard(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Use evaluates a snapshot and, if it qualifies, starts the sign-in in the
// background. It never blocks.
func (s *AutoSignin) Use(ctx context.Context, a *Auth) AutoSigninStatus {
	status := AutoSigninStatus{
		IsAuthenticated: a.IsAuthenticated,
		IsLoading:       a.IsLoading,
		Error:           a.Error,
	}
	if a.IsAuthenticated || a.IsLoading || a.ActiveNavigator != "" || a.Error != nil {
		return status
	}
	if !s.fired.CompareAndSwap(false, true) {
		return status
	}
	go s.signin(context.WithoutCancel(ctx), a)
	return status
}

// Done is closed once the sign-in attempt has finished.
func (s *AutoSignin) Done() <-chan struct{} {
	return s.done
}

// Run feeds every snapshot of p into Use until ctx is done or p unmounts.
func (s *AutoSignin) Run(ctx context.Context, p *Provider) {
	for a := range p.Subscribe(ctx) {
		s.Use(ctx, a)
	}
}

func (s *AutoSignin) signin(ctx context.Context, a *Auth) {
	defer close(s.done)

	s.logger.DebugContext(ctx, "starting automatic sign-in", logger.Navigator(string(s.method)))

	if s.before != nil {
		if err := s.before(ctx); err != nil {
			s.logger.WarnContext(ctx, "before auto sign-in hook failed", logger.Error(err))
			a.p.dispatch(Failed(navigatorError(Navigator(s.method), s.args, err)))
			return
		}
	}

	var err error
	switch s.method {
	case SigninMethodPopup:
		_, err = a.SigninPopup(ctx, usermanager.SigninPopupArgs(s.args))
	default:
		err = a.SigninRedirect(ctx, usermanager.SigninRedirectArgs(s.args))
	}
	if err != nil {
		s.logger.WarnContext(ctx, "automatic sign-in unavailable", logger.Error(err))
	}
}
