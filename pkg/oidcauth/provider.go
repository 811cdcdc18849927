package oidcauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/oidckit/pkg/logger"
	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

const tracerName = "github.com/dmitrymomot/oidckit/pkg/oidcauth"

// hydration guards the mount-time sequence so that it runs at most once.
type hydration int32

const (
	hydrationNotStarted hydration = iota
	hydrationInProgress
	hydrationDone
)

// Provider owns the authentication State of one user agent. It is the only
// writer of that state: manager events and navigator results are turned
// into actions, reduced, and published to readers as immutable *Auth
// snapshots.
type Provider struct {
	manager   UserManager
	owned     bool
	supported bool

	settings     *usermanager.Settings
	managerOpts  []usermanager.Option
	runtimeCheck func() bool

	location             func() *url.URL
	onSigninCallback     func(ctx context.Context, u *usermanager.User) error
	skipSigninCallback   bool
	matchSignoutCallback func(usermanager.Settings) bool
	onSignoutCallback    func(ctx context.Context, resp *usermanager.SignoutResponse) error
	onRemoveUser         func(ctx context.Context) error

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics

	hydration atomic.Int32
	ready     chan struct{}
	done      chan struct{}

	mu         sync.Mutex
	state      State
	auth       *Auth
	subs       map[uint64]chan *Auth
	nextSub    uint64
	mounted    bool
	unmounted  bool
	subscribed bool
	handles    eventHandles
}

type eventHandles struct {
	loaded, unloaded, signedOut, renewError usermanager.Handle
}

// New creates a provider. Exactly one of WithUserManager or WithSettings is
// required; WithUserManager wins when both are given.
func New(opts ...Option) (*Provider, error) {
	p := &Provider{
		location: func() *url.URL { return nil },
		logger:   logger.Discard(),
		tracer:   otel.Tracer(tracerName),
		state:    InitialState(),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		subs:     make(map[uint64]chan *Auth),
	}
	for _, opt := range opts {
		opt(p)
	}

	switch {
	case p.manager != nil:
		p.supported = true
	case p.settings != nil:
		p.owned = true
		if p.runtimeCheck != nil && !p.runtimeCheck() {
			p.manager = placeholder{settings: *p.settings}
			break
		}
		m, err := usermanager.New(*p.settings, p.managerOpts...)
		if err != nil {
			return nil, fmt.Errorf("oidcauth: create user manager: %w", err)
		}
		p.manager = m
		p.supported = true
	default:
		return nil, ErrMissingConfiguration
	}

	p.auth = &Auth{State: p.state, p: p}
	return p, nil
}

// Manager returns the manager the provider drives.
func (p *Provider) Manager() UserManager {
	return p.manager
}

// Mount subscribes to manager events and starts hydration in the
// background. Hydration outlives ctx cancellation; wait on Ready to observe
// its end. Mounting again is a no-op.
func (p *Provider) Mount(ctx context.Context) error {
	p.mu.Lock()
	if p.unmounted {
		p.mu.Unlock()
		return ErrProviderClosed
	}
	if p.mounted {
		p.mu.Unlock()
		return nil
	}
	p.mounted = true
	p.mu.Unlock()

	if !p.supported {
		p.hydration.Store(int32(hydrationDone))
		close(p.ready)
		p.logger.DebugContext(ctx, "user manager unsupported here, skipping hydration")
		return nil
	}

	p.subscribe()

	if p.hydration.CompareAndSwap(int32(hydrationNotStarted), int32(hydrationInProgress)) {
		go p.hydrate(context.WithoutCancel(ctx))
	}
	return nil
}

// Ready is closed once hydration has finished, successfully or not.
func (p *Provider) Ready() <-chan struct{} {
	return p.ready
}

// Unmount detaches from manager events, closes subscriber channels and, for
// an owned manager, stops silent renew and clears stale state. Dispatches
// after Unmount are dropped. Unmounting again is a no-op.
func (p *Provider) Unmount(ctx context.Context) error {
	p.mu.Lock()
	if p.unmounted {
		p.mu.Unlock()
		return nil
	}
	p.unmounted = true
	close(p.done)
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
	subscribed, handles := p.subscribed, p.handles
	p.subscribed = false
	p.mu.Unlock()

	if subscribed {
		ev := p.manager.Events()
		ev.RemoveUserLoaded(handles.loaded)
		ev.RemoveUserUnloaded(handles.unloaded)
		ev.RemoveUserSignedOut(handles.signedOut)
		ev.RemoveSilentRenewError(handles.renewError)
	}

	if p.owned && p.supported {
		p.manager.StopSilentRenew()
		if err := p.manager.ClearStaleState(ctx); err != nil {
			p.logger.WarnContext(ctx, "failed to clear stale state on unmount", logger.Error(err))
			return fmt.Errorf("oidcauth: clear stale state: %w", err)
		}
	}
	p.logger.DebugContext(ctx, "provider unmounted", slog.Bool("owned", p.owned))
	return nil
}

// Auth returns the current snapshot. The pointer stays the same until the
// next state change.
func (p *Provider) Auth() *Auth {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auth
}

// Subscribe delivers the current snapshot followed by every later one.
// Slow readers only see the latest snapshot. The channel is closed when ctx
// is done or the provider unmounts.
func (p *Provider) Subscribe(ctx context.Context) <-chan *Auth {
	ch := make(chan *Auth, 1)

	p.mu.Lock()
	if p.unmounted {
		p.mu.Unlock()
		close(ch)
		return ch
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	ch <- p.auth
	p.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-p.done:
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
	}()
	return ch
}

func (p *Provider) dispatch(a Action) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unmounted {
		p.logger.Debug("action dropped after unmount", logger.Action(string(a.Type)))
		return
	}

	prev := p.state
	p.state = Reduce(p.state, a)
	p.auth = &Auth{State: p.state, p: p}
	p.metrics.observe(a, prev, p.state)

	if p.state.Error != nil && p.state.Error != prev.Error {
		p.logger.Warn("auth error",
			logger.Source(string(p.state.Error.Source)),
			slog.String("name", p.state.Error.Name),
			slog.String("message", p.state.Error.Message),
		)
	}

	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- p.auth
	}
}

func (p *Provider) subscribe() {
	ev := p.manager.Events()
	if ev == nil {
		return
	}
	h := eventHandles{
		loaded: ev.AddUserLoaded(func(u *usermanager.User) {
			p.dispatch(UserLoaded(u))
		}),
		unloaded: ev.AddUserUnloaded(func() {
			p.dispatch(UserUnloaded())
		}),
		signedOut: ev.AddUserSignedOut(func() {
			p.dispatch(UserSignedOut())
		}),
		renewError: ev.AddSilentRenewError(func(err error) {
			p.dispatch(Failed(renewSilentError(err)))
		}),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unmounted {
		ev.RemoveUserLoaded(h.loaded)
		ev.RemoveUserUnloaded(h.unloaded)
		ev.RemoveUserSignedOut(h.signedOut)
		ev.RemoveSilentRenewError(h.renewError)
		return
	}
	p.handles = h
	p.subscribed = true
}

func (p *Provider) hydrate(ctx context.Context) {
	defer close(p.ready)
	defer p.hydration.Store(int32(hydrationDone))

	p.guarded(ctx, signinError, p.completeSignin)
	p.guarded(ctx, signoutError, p.completeSignout)
}

// guarded runs step and dispatches its error, or a recovered panic, through
// wrap.
func (p *Provider) guarded(ctx context.Context, wrap func(any) *ErrorContext, step func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "panic during hydration", slog.Any("panic", r))
			p.dispatch(Failed(wrap(r)))
		}
	}()
	if err := step(ctx); err != nil {
		p.dispatch(Failed(wrap(err)))
	}
}

func (p *Provider) completeSignin(ctx context.Context) error {
	var user *usermanager.User
	if loc := p.location(); HasAuthParams(loc) && !p.skipSigninCallback {
		u, err := p.manager.SigninCallback(ctx, loc)
		if err != nil {
			return err
		}
		if p.onSigninCallback != nil {
			if err := p.onSigninCallback(ctx, u); err != nil {
				return err
			}
		}
		user = u
	}
	if user == nil {
		u, err := p.manager.GetUser(ctx)
		if err != nil {
			return err
		}
		user = u
	}
	p.dispatch(Initialised(user))
	p.logger.DebugContext(ctx, "auth initialised", logger.Subject(user.Subject()))
	return nil
}

func (p *Provider) completeSignout(ctx context.Context) error {
	if p.matchSignoutCallback == nil || !p.matchSignoutCallback(p.manager.Settings()) {
		return nil
	}
	resp, err := p.manager.SignoutCallback(ctx, p.location())
	if err != nil {
		return err
	}
	if p.onSignoutCallback != nil {
		return p.onSignoutCallback(ctx, resp)
	}
	return nil
}
