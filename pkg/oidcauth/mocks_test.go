package oidcauth

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

// MockUserManager is a mock implementation of UserManager with a real event
// hub so tests can raise manager events.
type MockUserManager struct {
	mock.Mock

	settings usermanager.Settings
	events   *usermanager.Events
}

func newMockUserManager() *MockUserManager {
	return &MockUserManager{
		settings: usermanager.Settings{
			Authority:   "https://id.example.com",
			ClientID:    "client",
			RedirectURI: "https://app.example.com/callback",
		},
		events: usermanager.NewEvents(time.Minute),
	}
}

func (m *MockUserManager) Settings() usermanager.Settings {
	return m.settings
}

func (m *MockUserManager) Events() *usermanager.Events {
	return m.events
}

func (m *MockUserManager) GetUser(ctx context.Context) (*usermanager.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usermanager.User), args.Error(1)
}

func (m *MockUserManager) RemoveUser(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUserManager) SigninCallback(ctx context.Context, loc *url.URL) (*usermanager.User, error) {
	args := m.Called(ctx, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usermanager.User), args.Error(1)
}

func (m *MockUserManager) SignoutCallback(ctx context.Context, loc *url.URL) (*usermanager.SignoutResponse, error) {
	args := m.Called(ctx, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usermanager.SignoutResponse), args.Error(1)
}

func (m *MockUserManager) SigninPopup(ctx context.Context, a usermanager.SigninPopupArgs) (*usermanager.User, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usermanager.User), args.Error(1)
}

func (m *MockUserManager) SigninSilent(ctx context.Context, a usermanager.SigninSilentArgs) (*usermanager.User, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usermanager.User), args.Error(1)
}

func (m *MockUserManager) SigninRedirect(ctx context.Context, a usermanager.SigninRedirectArgs) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockUserManager) SigninResourceOwnerCredentials(ctx context.Context, a usermanager.ResourceOwnerCredentialsArgs) (*usermanager.User, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usermanager.User), args.Error(1)
}

func (m *MockUserManager) SignoutPopup(ctx context.Context, a usermanager.SignoutPopupArgs) (*usermanager.SignoutResponse, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usermanager.SignoutResponse), args.Error(1)
}

func (m *MockUserManager) SignoutRedirect(ctx context.Context, a usermanager.SignoutRedirectArgs) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockUserManager) SignoutSilent(ctx context.Context, a usermanager.SignoutSilentArgs) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockUserManager) ClearStaleState(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUserManager) QuerySessionStatus(ctx context.Context, a usermanager.QuerySessionStatusArgs) (*usermanager.SessionStatus, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usermanager.SessionStatus), args.Error(1)
}

func (m *MockUserManager) RevokeTokens(ctx context.Context, types ...usermanager.TokenType) error {
	args := m.Called(ctx, types)
	return args.Error(0)
}

func (m *MockUserManager) StartSilentRenew() {
	m.Called()
}

func (m *MockUserManager) StopSilentRenew() {
	m.Called()
}

func testUser(sub string) *usermanager.User {
	return &usermanager.User{
		AccessToken: "at-" + sub,
		TokenType:   "Bearer",
		Profile:     map[string]any{"sub": sub},
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}
}

func expiredUser(sub string) *usermanager.User {
	u := testUser(sub)
	u.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	return u
}

// mountedProvider creates a provider around m, mounts it and waits for
// hydration to finish.
func mountedProvider(t *testing.T, m UserManager, opts ...Option) *Provider {
	t.Helper()
	p, err := New(append([]Option{WithUserManager(m)}, opts...)...)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if err := p.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	select {
	case <-p.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("hydration did not finish")
	}
	t.Cleanup(func() { _ = p.Unmount(context.Background()) })
	return p
}
