package oidcauth

import "github.com/dmitrymomot/oidckit/pkg/usermanager"

// Navigator names a navigation method whose progress is tracked in
// State.ActiveNavigator.
type Navigator string

const (
	NavigatorSigninPopup                    Navigator = "signinPopup"
	NavigatorSigninSilent                   Navigator = "signinSilent"
	NavigatorSigninRedirect                 Navigator = "signinRedirect"
	NavigatorSigninResourceOwnerCredentials Navigator = "signinResourceOwnerCredentials"
	NavigatorSignoutPopup                   Navigator = "signoutPopup"
	NavigatorSignoutRedirect                Navigator = "signoutRedirect"
	NavigatorSignoutSilent                  Navigator = "signoutSilent"
)

// Navigators lists every tracked navigation method.
var Navigators = []Navigator{
	NavigatorSigninPopup,
	NavigatorSigninSilent,
	NavigatorSigninRedirect,
	NavigatorSigninResourceOwnerCredentials,
	NavigatorSignoutPopup,
	NavigatorSignoutRedirect,
	NavigatorSignoutSilent,
}

// ErrorSource identifies the operation an ErrorContext originated from.
// Navigator failures use the navigator name as their source.
type ErrorSource string

const (
	SourceSigninCallback                 ErrorSource = "signinCallback"
	SourceSignoutCallback                ErrorSource = "signoutCallback"
	SourceRenewSilent                    ErrorSource = "renewSilent"
	SourceSigninPopup                    ErrorSource = ErrorSource(NavigatorSigninPopup)
	SourceSigninSilent                   ErrorSource = ErrorSource(NavigatorSigninSilent)
	SourceSigninRedirect                 ErrorSource = ErrorSource(NavigatorSigninRedirect)
	SourceSigninResourceOwnerCredentials ErrorSource = ErrorSource(NavigatorSigninResourceOwnerCredentials)
	SourceSignoutPopup                   ErrorSource = ErrorSource(NavigatorSignoutPopup)
	SourceSignoutRedirect                ErrorSource = ErrorSource(NavigatorSignoutRedirect)
	SourceSignoutSilent                  ErrorSource = ErrorSource(NavigatorSignoutSilent)
	SourceUnknown                        ErrorSource = "unknown"
)

// State is the authentication state mirrored from the user manager.
//
// A nil User while IsLoading is set means the user has not been determined
// yet; once loading ends a nil User means there is none.
type State struct {
	User            *usermanager.User
	IsLoading       bool
	IsAuthenticated bool
	// ActiveNavigator is the most recently started navigation method still
	// considered in flight.
	ActiveNavigator Navigator
	Error           *ErrorContext
}

// InitialState is the state of a freshly created provider.
func InitialState() State {
	return State{IsLoading: true}
}

func authenticated(u *usermanager.User) bool {
	return u != nil && !u.Expired()
}
