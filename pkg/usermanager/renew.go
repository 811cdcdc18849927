package usermanager

import (
	"context"
	"sync"

	"github.com/dmitrymomot/oidckit/pkg/logger"
)

// silentRenew renews the session each time AccessTokenExpiring fires.
type silentRenew struct {
	m *UserManager

	mu      sync.Mutex
	handle  Handle
	running bool
}

// StartSilentRenew subscribes automatic renewal to AccessTokenExpiring.
// Calling it while renewal is active is a no-op.
func (m *UserManager) StartSilentRenew() {
	r := &m.renew
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.handle = m.events.AddAccessTokenExpiring(r.expiring)
	r.running = true
}

// StopSilentRenew cancels automatic renewal.
func (m *UserManager) StopSilentRenew() {
	r := &m.renew
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	m.events.RemoveAccessTokenExpiring(r.handle)
	r.running = false
}

func (r *silentRenew) expiring(*User) {
	ctx := context.Background()
	if _, err := r.m.SigninSilent(ctx, SigninSilentArgs{}); err != nil {
		r.m.logger.WarnContext(ctx, "silent renew failed", logger.Error(err))
		r.m.events.RaiseSilentRenewError(err)
		return
	}
	r.m.logger.DebugContext(ctx, "silent renew succeeded")
}
