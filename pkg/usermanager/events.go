package usermanager

import (
	"sync"
	"time"
)

// Handle identifies a registered event callback.
type Handle uint64

type event[T any] struct {
	mu        sync.Mutex
	next      Handle
	order     []Handle
	callbacks map[Handle]func(T)
}

func (e *event[T]) add(cb func(T)) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.callbacks == nil {
		e.callbacks = make(map[Handle]func(T))
	}
	e.next++
	e.callbacks[e.next] = cb
	e.order = append(e.order, e.next)
	return e.next
}

func (e *event[T]) remove(h Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.callbacks[h]; !ok {
		return
	}
	delete(e.callbacks, h)
	for i, id := range e.order {
		if id == h {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// raise calls every callback in registration order outside the lock, so a
// callback may add or remove handlers.
func (e *event[T]) raise(v T) {
	e.mu.Lock()
	cbs := make([]func(T), 0, len(e.order))
	for _, id := range e.order {
		cbs = append(cbs, e.callbacks[id])
	}
	e.mu.Unlock()

	for _, cb := range cbs {
		cb(v)
	}
}

func (e *event[T]) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

// Events is the user lifecycle event hub of a UserManager.
// All methods are safe for concurrent use.
type Events struct {
	userLoaded          event[*User]
	userUnloaded        event[struct{}]
	userSignedOut       event[struct{}]
	silentRenewError    event[error]
	accessTokenExpiring event[*User]
	accessTokenExpired  event[*User]

	notifyBefore time.Duration
	now          func() time.Time

	timerMu       sync.Mutex
	expiringTimer *time.Timer
	expiredTimer  *time.Timer
}

// NewEvents creates an event hub. AccessTokenExpiring fires notifyBefore
// ahead of the access token expiry.
func NewEvents(notifyBefore time.Duration) *Events {
	return &Events{notifyBefore: notifyBefore, now: time.Now}
}

// AddUserLoaded registers cb for users loaded by a sign-in or renewal.
func (e *Events) AddUserLoaded(cb func(*User)) Handle {
	return e.userLoaded.add(cb)
}

func (e *Events) RemoveUserLoaded(h Handle) {
	e.userLoaded.remove(h)
}

// AddUserUnloaded registers cb for user removal.
func (e *Events) AddUserUnloaded(cb func()) Handle {
	return e.userUnloaded.add(func(struct{}) { cb() })
}

func (e *Events) RemoveUserUnloaded(h Handle) {
	e.userUnloaded.remove(h)
}

// AddUserSignedOut registers cb for sessions ended at the provider.
func (e *Events) AddUserSignedOut(cb func()) Handle {
	return e.userSignedOut.add(func(struct{}) { cb() })
}

func (e *Events) RemoveUserSignedOut(h Handle) {
	e.userSignedOut.remove(h)
}

// AddSilentRenewError registers cb for failed automatic renewals.
func (e *Events) AddSilentRenewError(cb func(error)) Handle {
	return e.silentRenewError.add(cb)
}

func (e *Events) RemoveSilentRenewError(h Handle) {
	e.silentRenewError.remove(h)
}

func (e *Events) AddAccessTokenExpiring(cb func(*User)) Handle {
	return e.accessTokenExpiring.add(cb)
}

func (e *Events) RemoveAccessTokenExpiring(h Handle) {
	e.accessTokenExpiring.remove(h)
}

func (e *Events) AddAccessTokenExpired(cb func(*User)) Handle {
	return e.accessTokenExpired.add(cb)
}

func (e *Events) RemoveAccessTokenExpired(h Handle) {
	e.accessTokenExpired.remove(h)
}

// Load arms the access token timers for u and, when raise is set, notifies
// UserLoaded subscribers.
func (e *Events) Load(u *User, raise bool) {
	e.armTimers(u)
	if raise {
		e.userLoaded.raise(u)
	}
}

// Unload disarms the access token timers and notifies UserUnloaded subscribers.
func (e *Events) Unload() {
	e.disarmTimers()
	e.userUnloaded.raise(struct{}{})
}

// RaiseUserSignedOut notifies subscribers that the provider session ended.
func (e *Events) RaiseUserSignedOut() {
	e.userSignedOut.raise(struct{}{})
}

// RaiseSilentRenewError notifies subscribers that an automatic renewal failed.
func (e *Events) RaiseSilentRenewError(err error) {
	e.silentRenewError.raise(err)
}

// Close disarms pending timers without raising events.
func (e *Events) Close() {
	e.disarmTimers()
}

func (e *Events) armTimers(u *User) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	e.stopTimersLocked()

	left, ok := u.ExpiresIn(e.now())
	if !ok {
		return
	}
	if left > 0 {
		expiring := left - e.notifyBefore
		if expiring <= 0 {
			expiring = time.Second
		}
		e.expiringTimer = time.AfterFunc(expiring, func() { e.accessTokenExpiring.raise(u) })
	}
	e.expiredTimer = time.AfterFunc(max(left, 0)+time.Second, func() { e.accessTokenExpired.raise(u) })
}

func (e *Events) disarmTimers() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	e.stopTimersLocked()
}

func (e *Events) stopTimersLocked() {
	if e.expiringTimer != nil {
		e.expiringTimer.Stop()
		e.expiringTimer = nil
	}
	if e.expiredTimer != nil {
		e.expiredTimer.Stop()
		e.expiredTimer = nil
	}
}
