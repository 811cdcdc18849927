package usermanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/oidckit/pkg/logger"
)

// UserManager manages the OIDC session of a single user agent. Protocol work
// is delegated to golang.org/x/oauth2 and github.com/coreos/go-oidc; the
// manager keeps the resulting user in a Store and announces changes on Events.
type UserManager struct {
	settings   Settings
	events     *Events
	userStore  Store
	stateStore Store

	redirectNav Navigator
	popupNav    Navigator
	silentNav   Navigator

	httpClient   *http.Client
	logger       *slog.Logger
	now          func() time.Time
	verifierOpts []func(*oidc.Config)

	discoMu sync.Mutex
	disco   *discovery

	refresh singleflight.Group
	renew   silentRenew
}

// Option configures a UserManager during construction.
type Option func(*UserManager)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *UserManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithUserStore sets where the signed-in user is kept.
func WithUserStore(s Store) Option {
	return func(m *UserManager) {
		if s != nil {
			m.userStore = s
		}
	}
}

// WithStateStore sets where in-flight request state is kept.
func WithStateStore(s Store) Option {
	return func(m *UserManager) {
		if s != nil {
			m.stateStore = s
		}
	}
}

// WithRedirectNavigator sets the navigator used by SigninRedirect and
// SignoutRedirect. Defaults to HTTPRedirectNavigator.
func WithRedirectNavigator(n Navigator) Option {
	return func(m *UserManager) { m.redirectNav = n }
}

// WithPopupNavigator sets the round-trip navigator used by SigninPopup and
// SignoutPopup.
func WithPopupNavigator(n Navigator) Option {
	return func(m *UserManager) { m.popupNav = n }
}

// WithSilentNavigator sets the round-trip navigator used for prompt=none
// requests when no refresh token is available.
func WithSilentNavigator(n Navigator) Option {
	return func(m *UserManager) { m.silentNav = n }
}

// WithHTTPClient sets the client used for discovery, token and revocation
// requests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *UserManager) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *UserManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithVerifierConfig adjusts the ID token verifier configuration.
func WithVerifierConfig(fn func(*oidc.Config)) Option {
	return func(m *UserManager) {
		if fn != nil {
			m.verifierOpts = append(m.verifierOpts, fn)
		}
	}
}

// New creates a UserManager. It performs no network I/O; provider metadata
// is loaded on first use. Silent renew starts immediately when
// Settings.AutomaticSilentRenew is set.
func New(settings Settings, opts ...Option) (*UserManager, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	settings = settings.withDefaults()

	m := &UserManager{
		settings:    settings,
		events:      NewEvents(settings.AccessTokenExpiringNotificationTime),
		userStore:   NewMemoryStore(16, 0),
		stateStore:  NewMemoryStore(256, settings.StaleStateAge),
		redirectNav: HTTPRedirectNavigator{},
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger.Discard(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events.now = m.now
	m.renew.m = m

	if settings.AutomaticSilentRenew {
		m.StartSilentRenew()
	}
	return m, nil
}

// Settings returns the effective settings.
func (m *UserManager) Settings() Settings {
	return m.settings
}

// Events returns the event hub.
func (m *UserManager) Events() *Events {
	return m.events
}

// GetUser returns the stored user, or nil when none is stored. Loading a
// user arms its access token timers without raising UserLoaded.
func (m *UserManager) GetUser(ctx context.Context) (*User, error) {
	u, err := m.loadUser(ctx)
	if err != nil || u == nil {
		return nil, err
	}
	m.events.Load(u, false)
	return u, nil
}

// RemoveUser deletes the stored user and raises UserUnloaded.
func (m *UserManager) RemoveUser(ctx context.Context) error {
	if _, err := m.userStore.Remove(ctx, m.settings.userStoreKey()); err != nil {
		return fmt.Errorf("usermanager: remove user: %w", err)
	}
	m.events.Unload()
	m.logger.DebugContext(ctx, "user removed")
	return nil
}

func (m *UserManager) loadUser(ctx context.Context) (*User, error) {
	raw, err := m.userStore.Get(ctx, m.settings.userStoreKey())
	if err != nil {
		return nil, fmt.Errorf("usermanager: load user: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	return UserFromStorageString(raw)
}

func (m *UserManager) storeUser(ctx context.Context, u *User) error {
	raw, err := u.ToStorageString()
	if err != nil {
		return err
	}
	if err := m.userStore.Set(ctx, m.settings.userStoreKey(), raw); err != nil {
		return fmt.Errorf("usermanager: store user: %w", err)
	}
	return nil
}

// signinEnd persists a freshly signed-in user and announces it.
func (m *UserManager) signinEnd(ctx context.Context, u *User) (*User, error) {
	if err := m.storeUser(ctx, u); err != nil {
		return nil, err
	}
	m.logger.DebugContext(ctx, "user loaded", logger.Subject(u.Subject()))
	m.events.Load(u, true)
	return u, nil
}

type discovery struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
	meta     Metadata
}

func (m *UserManager) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, m.httpClient)
}

// discover loads provider metadata once; failures are not cached.
func (m *UserManager) discover(ctx context.Context) (*discovery, error) {
	m.discoMu.Lock()
	defer m.discoMu.Unlock()

	if m.disco != nil {
		return m.disco, nil
	}

	ctx = m.clientContext(context.WithoutCancel(ctx))
	meta := m.settings.Metadata

	var provider *oidc.Provider
	if meta.IsZero() {
		p, err := oidc.NewProvider(ctx, m.settings.Authority)
		if err != nil {
			return nil, errors.Join(ErrDiscoveryFailed, err)
		}
		if err := p.Claims(&meta); err != nil {
			return nil, errors.Join(ErrDiscoveryFailed, err)
		}
		provider = p
	} else {
		if meta.Issuer == "" {
			meta.Issuer = m.settings.Authority
		}
		provider = (&oidc.ProviderConfig{
			IssuerURL:   meta.Issuer,
			AuthURL:     meta.AuthorizationEndpoint,
			TokenURL:    meta.TokenEndpoint,
			UserInfoURL: meta.UserInfoEndpoint,
			JWKSURL:     meta.JWKSURI,
		}).NewProvider(ctx)
	}

	cfg := &oidc.Config{ClientID: m.settings.ClientID, Now: m.now}
	for _, fn := range m.verifierOpts {
		fn(cfg)
	}

	m.disco = &discovery{
		provider: provider,
		verifier: provider.Verifier(cfg),
		meta:     meta,
		oauth: &oauth2.Config{
			ClientID:     m.settings.ClientID,
			ClientSecret: m.settings.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  m.settings.RedirectURI,
			Scopes:       m.settings.Scopes(),
		},
	}
	m.logger.DebugContext(ctx, "provider metadata loaded", logger.Issuer(meta.Issuer))
	return m.disco, nil
}

// Metadata returns the provider metadata, discovering it when needed.
func (m *UserManager) Metadata(ctx context.Context) (Metadata, error) {
	d, err := m.discover(ctx)
	if err != nil {
		return Metadata{}, err
	}
	return d.meta, nil
}
