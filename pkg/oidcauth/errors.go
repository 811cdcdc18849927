package oidcauth

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	ErrNoProvider           = errors.New("oidcauth: no auth state in context, wrap the handler with a provider middleware")
	ErrMissingConfiguration = errors.New("oidcauth: either a user manager or settings must be provided")
	ErrProviderClosed       = errors.New("oidcauth: provider is unmounted")
)

// UnsupportedContextError is returned by every manager-backed method when
// the provider runs with the settings-only placeholder manager.
type UnsupportedContextError struct {
	Method string
}

func (e *UnsupportedContextError) Error() string {
	return fmt.Sprintf("UserManager#%s was called from an unsupported context. "+
		"If this runs before the provider is usable, defer the call until mount or pass a custom UserManager implementation.", e.Method)
}

// ErrorContext is a normalized failure recorded in State.Error.
type ErrorContext struct {
	Name    string
	Message string
	Stack   string
	// InnerError holds the original value when it was not an error.
	InnerError any
	Source     ErrorSource
	// Args are the arguments of the failed navigator call.
	Args any

	cause error
}

func (e *ErrorContext) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Message
}

func (e *ErrorContext) Unwrap() error {
	return e.cause
}

// NormalizeError turns any failure value into an ErrorContext. Errors keep
// their message and, when they expose them, their Name() and Stack().
// Any other value becomes a generic "Error" with the fallback message, a
// captured stack and the value itself as InnerError.
func NormalizeError(v any, fallback string) ErrorContext {
	if err, ok := v.(error); ok && err != nil {
		ec := ErrorContext{
			Name:    fmt.Sprintf("%T", err),
			Message: err.Error(),
			cause:   err,
		}
		var named interface{ Name() string }
		if errors.As(err, &named) && named.Name() != "" {
			ec.Name = named.Name()
		}
		var stacked interface{ Stack() string }
		if errors.As(err, &stacked) {
			ec.Stack = stacked.Stack()
		}
		return ec
	}
	return ErrorContext{
		Name:       "Error",
		Message:    fallback,
		Stack:      string(debug.Stack()),
		InnerError: v,
	}
}

func signinError(v any) *ErrorContext {
	ec := NormalizeError(v, "Sign-in failed")
	ec.Source = SourceSigninCallback
	return &ec
}

func signoutError(v any) *ErrorContext {
	ec := NormalizeError(v, "Sign-out failed")
	ec.Source = SourceSignoutCallback
	return &ec
}

func renewSilentError(v any) *ErrorContext {
	ec := NormalizeError(v, "Renew silent failed")
	ec.Source = SourceRenewSilent
	return &ec
}

func navigatorError(n Navigator, args, v any) *ErrorContext {
	ec := NormalizeError(v, fmt.Sprintf("Unknown error while executing %s(...).", n))
	ec.Source = ErrorSource(n)
	ec.Args = args
	return &ec
}
