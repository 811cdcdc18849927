package oidcauth

import (
	"fmt"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

// ActionType is the closed set of state transitions.
type ActionType string

const (
	ActionInitialised    ActionType = "INITIALISED"
	ActionUserLoaded     ActionType = "USER_LOADED"
	ActionUserUnloaded   ActionType = "USER_UNLOADED"
	ActionUserSignedOut  ActionType = "USER_SIGNED_OUT"
	ActionNavigatorInit  ActionType = "NAVIGATOR_INIT"
	ActionNavigatorClose ActionType = "NAVIGATOR_CLOSE"
	ActionError          ActionType = "ERROR"
)

// Action is a single state transition request.
type Action struct {
	Type      ActionType
	User      *usermanager.User
	Navigator Navigator
	Error     *ErrorContext
}

func Initialised(u *usermanager.User) Action {
	return Action{Type: ActionInitialised, User: u}
}

func UserLoaded(u *usermanager.User) Action {
	return Action{Type: ActionUserLoaded, User: u}
}

func UserUnloaded() Action {
	return Action{Type: ActionUserUnloaded}
}

func UserSignedOut() Action {
	return Action{Type: ActionUserSignedOut}
}

func NavigatorInit(n Navigator) Action {
	return Action{Type: ActionNavigatorInit, Navigator: n}
}

func NavigatorClose() Action {
	return Action{Type: ActionNavigatorClose}
}

func Failed(err *ErrorContext) Action {
	return Action{Type: ActionError, Error: err}
}

// Reduce returns the state that results from applying a to s. It is pure:
// s is taken by value and never modified. Loaded users are copied, so a
// state never aliases the manager's user. Unknown action types leave the
// state untouched apart from an error tagged SourceUnknown.
func Reduce(s State, a Action) State {
	switch a.Type {
	case ActionInitialised:
		s.User = a.User.Clone()
		s.IsLoading = false
		s.IsAuthenticated = authenticated(a.User)
		s.Error = nil
	case ActionUserLoaded:
		s.User = a.User.Clone()
		s.IsLoading = false
		s.IsAuthenticated = authenticated(a.User)
		s.Error = nil
	case ActionUserUnloaded, ActionUserSignedOut:
		s.User = nil
		s.IsAuthenticated = false
	case ActionNavigatorInit:
		s.ActiveNavigator = a.Navigator
	case ActionNavigatorClose:
		s.ActiveNavigator = ""
	case ActionError:
		s.Error = a.Error
	default:
		s.Error = &ErrorContext{
			Name:    "Error",
			Message: fmt.Sprintf("unknown action type %q", a.Type),
			Source:  SourceUnknown,
		}
	}
	return s
}
