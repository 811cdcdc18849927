package usermanager

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TokenType names a revocable token.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access_token"
	TokenTypeRefresh TokenType = "refresh_token"
)

// User is the session record produced by a successful sign-in.
type User struct {
	IDToken      string         `json:"id_token,omitempty"`
	SessionState string         `json:"session_state,omitempty"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type"`
	Scope        string         `json:"scope,omitempty"`
	Profile      map[string]any `json:"profile"`
	// ExpiresAt is the access token expiry in unix seconds; zero means unknown.
	ExpiresAt int64 `json:"expires_at,omitempty"`
	// URLState is the application state passed through the sign-in round trip.
	URLState string `json:"url_state,omitempty"`
}

// ExpiresIn returns the time left until the access token expires at now.
// The second result is false when the expiry is unknown.
func (u *User) ExpiresIn(now time.Time) (time.Duration, bool) {
	if u == nil || u.ExpiresAt == 0 {
		return 0, false
	}
	return time.Unix(u.ExpiresAt, 0).Sub(now), true
}

// ExpiredAt reports whether the access token is expired at now.
// A user without a known expiry never expires.
func (u *User) ExpiredAt(now time.Time) bool {
	left, ok := u.ExpiresIn(now)
	return ok && left <= 0
}

// Expired reports whether the access token is expired.
func (u *User) Expired() bool {
	return u.ExpiredAt(time.Now())
}

// Scopes returns the granted scopes.
func (u *User) Scopes() []string {
	if u == nil {
		return nil
	}
	return strings.Fields(u.Scope)
}

// Subject returns the "sub" claim of the profile.
func (u *User) Subject() string {
	if u == nil || u.Profile == nil {
		return ""
	}
	sub, _ := u.Profile["sub"].(string)
	return sub
}

// Clone returns a deep enough copy for callers to mutate token fields.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Profile != nil {
		c.Profile = make(map[string]any, len(u.Profile))
		for k, v := range u.Profile {
			c.Profile[k] = v
		}
	}
	return &c
}

// ToStorageString encodes the user for a Store.
func (u *User) ToStorageString() (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("usermanager: encode user: %w", err)
	}
	return string(b), nil
}

// UserFromStorageString decodes a user previously encoded with ToStorageString.
func UserFromStorageString(raw string) (*User, error) {
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("usermanager: decode user: %w", err)
	}
	return &u, nil
}

// protocolClaims are stripped from the profile when FilterProtocolClaims is set.
var protocolClaims = []string{"nbf", "jti", "auth_time", "nonce", "acr", "amr", "azp", "at_hash", "iat", "exp", "iss", "aud", "c_hash", "s_hash"}

func filterProtocolClaims(claims map[string]any) map[string]any {
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	for _, k := range protocolClaims {
		delete(out, k)
	}
	return out
}
