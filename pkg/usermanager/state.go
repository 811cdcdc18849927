package usermanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type requestKind string

const (
	kindSigninRedirect  requestKind = "si:r"
	kindSigninPopup     requestKind = "si:p"
	kindSigninSilent    requestKind = "si:s"
	kindSessionStatus   requestKind = "si:q"
	kindSignoutRedirect requestKind = "so:r"
	kindSignoutPopup    requestKind = "so:p"
	kindSignoutSilent   requestKind = "so:s"
)

func (k requestKind) signin() bool {
	return len(k) > 2 && k[:2] == "si"
}

// requestState is kept in the state store between an authorization or
// end-session request and its callback.
type requestState struct {
	ID           string      `json:"id"`
	Kind         requestKind `json:"kind"`
	CreatedAt    int64       `json:"created"`
	ClientID     string      `json:"client_id"`
	Authority    string      `json:"authority"`
	RedirectURI  string      `json:"redirect_uri,omitempty"`
	CodeVerifier string      `json:"code_verifier,omitempty"`
	Nonce        string      `json:"nonce,omitempty"`
	Scope        string      `json:"scope,omitempty"`
	ResponseMode string      `json:"response_mode,omitempty"`
	URLState     string      `json:"url_state,omitempty"`
	SkipUserInfo bool        `json:"skip_userinfo,omitempty"`
}

func (s *requestState) staleAt(now time.Time, age time.Duration) bool {
	return time.Unix(s.CreatedAt, 0).Add(age).Before(now)
}

func (m *UserManager) saveState(ctx context.Context, st *requestState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("usermanager: encode state: %w", err)
	}
	if err := m.stateStore.Set(ctx, st.ID, string(b)); err != nil {
		return fmt.Errorf("usermanager: save state: %w", err)
	}
	return nil
}

// consumeState removes the state for id so that a response can be
// processed at most once.
func (m *UserManager) consumeState(ctx context.Context, id string) (*requestState, error) {
	if id == "" {
		return nil, ErrMissingState
	}
	raw, err := m.stateStore.Remove(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("usermanager: load state: %w", err)
	}
	if raw == "" {
		return nil, ErrStateNotFound
	}
	var st requestState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, errors.Join(ErrStateNotFound, err)
	}
	return &st, nil
}

// ClearStaleState removes request states older than Settings.StaleStateAge
// and any entries that cannot be decoded.
func (m *UserManager) ClearStaleState(ctx context.Context) error {
	keys, err := m.stateStore.Keys(ctx)
	if err != nil {
		return fmt.Errorf("usermanager: list state keys: %w", err)
	}

	now := m.now()
	var errs []error
	removed := 0
	for _, key := range keys {
		raw, err := m.stateStore.Get(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var st requestState
		if raw != "" && json.Unmarshal([]byte(raw), &st) == nil && !st.staleAt(now, m.settings.StaleStateAge) {
			continue
		}
		if _, err := m.stateStore.Remove(ctx, key); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	m.logger.DebugContext(ctx, "cleared stale state", slog.Int("removed", removed), slog.Int("scanned", len(keys)))
	return errors.Join(errs...)
}
