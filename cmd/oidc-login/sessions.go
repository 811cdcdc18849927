package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/oidckit/pkg/logger"
	"github.com/dmitrymomot/oidckit/pkg/oidcauth"
	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

const sessionCookie = "oidc_session"

var errSessionsClosed = errors.New("oidc-login: sessions closed")

type sessionConfig struct {
	TTL time.Duration `env:"OIDC_SESSION_TTL" envDefault:"24h" yaml:"ttl"`
	Max int           `env:"OIDC_MAX_SESSIONS" envDefault:"10000" yaml:"max"`
}

// sessions keeps one provider per browser session, keyed by a cookie.
// Every provider reads its user from its own prefix of the shared user
// store. Request state is shared, so any provider can sweep it.
type sessions struct {
	cfg       sessionConfig
	settings  usermanager.Settings
	userStore usermanager.Store
	opts      []usermanager.Option
	metrics   *oidcauth.Metrics
	log       *slog.Logger

	// base owns no user; it sweeps the shared state store and answers
	// readiness by loading the provider metadata.
	base  *usermanager.UserManager
	cache *expirable.LRU[string, *oidcauth.Provider]

	mu     sync.Mutex
	closed bool
	ending sync.WaitGroup
}

func newSessions(settings usermanager.Settings, cfg sessionConfig, userStore, stateStore usermanager.Store, metrics *oidcauth.Metrics, log *slog.Logger) (*sessions, error) {
	if cfg.Max <= 0 {
		cfg.Max = 10000
	}
	if log == nil {
		log = logger.Discard()
	}
	if userStore == nil {
		userStore = usermanager.NewMemoryStore(cfg.Max, cfg.TTL)
	}
	if stateStore == nil {
		stateStore = usermanager.NewMemoryStore(cfg.Max, settings.StaleStateAge)
	}

	opts := []usermanager.Option{
		usermanager.WithStateStore(stateStore),
		usermanager.WithLogger(log),
	}
	baseSettings := settings
	baseSettings.AutomaticSilentRenew = false
	base, err := usermanager.New(baseSettings, append(slices.Clone(opts),
		usermanager.WithUserStore(usermanager.PrefixStore(userStore, "base:")),
	)...)
	if err != nil {
		return nil, err
	}

	s := &sessions{
		cfg:       cfg,
		settings:  settings,
		userStore: userStore,
		opts:      opts,
		metrics:   metrics,
		log:       log,
		base:      base,
	}
	s.cache = expirable.NewLRU[string, *oidcauth.Provider](cfg.Max, s.evicted, cfg.TTL)
	return s, nil
}

// Middleware resolves the session of the request, opening one when the
// cookie is missing or unknown, and injects its snapshot.
func (s *sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.provider(w, r)
		if err != nil {
			s.log.ErrorContext(r.Context(), "open session failed", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, p)
		p.Middleware(next).ServeHTTP(w, r.WithContext(ctx))
	})
}

type sessionContextKey struct{}

// sessionProvider returns the provider resolved by Middleware.
func sessionProvider(ctx context.Context) *oidcauth.Provider {
	p, _ := ctx.Value(sessionContextKey{}).(*oidcauth.Provider)
	return p
}

func (s *sessions) provider(w http.ResponseWriter, r *http.Request) (*oidcauth.Provider, error) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if p, ok := s.cache.Get(c.Value); ok {
			return p, nil
		}
	}

	id, p, err := s.open(r.Context())
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return p, nil
}

func (s *sessions) open(ctx context.Context) (string, *oidcauth.Provider, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", nil, errSessionsClosed
	}

	id := uuid.NewString()
	opts := append(slices.Clone(s.opts),
		usermanager.WithUserStore(usermanager.PrefixStore(s.userStore, id+":")),
	)
	p, err := oidcauth.New(
		oidcauth.WithSettings(s.settings, opts...),
		oidcauth.WithLogger(s.log),
		oidcauth.WithMetrics(s.metrics),
	)
	if err != nil {
		return "", nil, err
	}
	if err := p.Mount(context.WithoutCancel(ctx)); err != nil {
		return "", nil, err
	}
	select {
	case <-p.Ready():
	case <-ctx.Done():
		_ = s.end(context.WithoutCancel(ctx), p)
		return "", nil, ctx.Err()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = s.end(context.WithoutCancel(ctx), p)
		return "", nil, errSessionsClosed
	}
	s.cache.Add(id, p)
	s.mu.Unlock()

	s.log.DebugContext(ctx, "session opened", slog.String("session", id))
	return id, p, nil
}

func (s *sessions) lookup(id string) (*oidcauth.Provider, bool) {
	return s.cache.Peek(id)
}

// evicted runs under the cache lock, so the session ends in the background.
func (s *sessions) evicted(id string, p *oidcauth.Provider) {
	s.ending.Add(1)
	go func() {
		defer s.ending.Done()
		if err := s.end(context.Background(), p); err != nil {
			s.log.Warn("end session failed", slog.String("session", id), logger.Error(err))
		}
	}()
}

// end drops the session user and unmounts its provider.
func (s *sessions) end(ctx context.Context, p *oidcauth.Provider) error {
	return errors.Join(p.Manager().RemoveUser(ctx), p.Unmount(ctx))
}

// ClearStaleState sweeps the shared state store.
func (s *sessions) ClearStaleState(ctx context.Context) error {
	return s.base.ClearStaleState(ctx)
}

// Healthcheck fails once the sessions are closed or while the provider
// metadata cannot be loaded.
func (s *sessions) Healthcheck(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errSessionsClosed
	}
	_, err := s.base.Metadata(ctx)
	return err
}

// Collector exposes the number of open sessions.
func (s *sessions) Collector() prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "oidc_login_sessions",
		Help: "Number of open browser sessions",
	}, func() float64 { return float64(s.cache.Len()) })
}

// Close ends every session and waits for them, bounded by ctx.
func (s *sessions) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cache.Purge()

	done := make(chan struct{})
	go func() {
		s.ending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
