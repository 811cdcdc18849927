package usermanager

import (
	"errors"
	"fmt"
)

// Settings errors
var (
	ErrInvalidSettings     = errors.New("usermanager: invalid settings")
	ErrMissingAuthority    = errors.New("usermanager: authority is required")
	ErrMissingClientID     = errors.New("usermanager: client_id is required")
	ErrMissingRedirectURI  = errors.New("usermanager: redirect_uri is required")
	ErrInvalidResponseMode = errors.New("usermanager: response_mode must be \"query\" or \"fragment\"")
)

// Protocol state errors
var (
	ErrDiscoveryFailed   = errors.New("usermanager: failed to load provider metadata")
	ErrMissingState      = errors.New("usermanager: no state in response")
	ErrStateNotFound     = errors.New("usermanager: no matching state found in storage")
	ErrUnexpectedRequest = errors.New("usermanager: response does not match request type")
	ErrMissingCode       = errors.New("usermanager: no code in response")
	ErrNonceMismatch     = errors.New("usermanager: nonce mismatch")
	ErrSubjectMismatch   = errors.New("usermanager: authenticated user does not match current user")
	ErrNoUser            = errors.New("usermanager: no user is loaded")
	ErrNoRefreshToken    = errors.New("usermanager: no refresh token and no silent navigator")
	ErrNoEndSession      = errors.New("usermanager: provider has no end_session_endpoint")
	ErrNoRevocation      = errors.New("usermanager: provider has no revocation_endpoint")
)

// Navigation errors
var (
	ErrNavigatorUnavailable    = errors.New("usermanager: no navigator configured for this flow")
	ErrNoHTTPExchange          = errors.New("usermanager: no http exchange in context")
	ErrNotLoopback             = errors.New("usermanager: redirect uri is not a loopback http address")
	ErrUnsupportedResponseMode = errors.New("usermanager: fragment responses cannot reach a loopback listener")
	ErrNavigationTimeout       = errors.New("usermanager: navigation timed out")
)

// ErrorResponse is an OAuth2/OIDC error returned by the provider in a
// callback or by a token endpoint.
type ErrorResponse struct {
	Code        string
	Description string
	URI         string
	URLState    string
}

func (e *ErrorResponse) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("usermanager: %s: %s", e.Code, e.Description)
	}
	return "usermanager: " + e.Code
}

// Name is the error name reported by normalized error contexts.
func (e *ErrorResponse) Name() string {
	return "ErrorResponse"
}

// IsLoginRequired reports whether err is a login_required error response.
func IsLoginRequired(err error) bool {
	var er *ErrorResponse
	return errors.As(err, &er) && er.Code == "login_required"
}
