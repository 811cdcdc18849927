package httpserver

import "errors"

var (
	// ErrStart indicates that the server or one of its start hooks failed.
	ErrStart = errors.New("failed to start HTTP server")
	// ErrShutdown indicates that graceful shutdown or a stop hook failed.
	ErrShutdown = errors.New("failed to shutdown HTTP server gracefully")
	// ErrNotReady is returned by readiness checks that have not passed yet.
	ErrNotReady = errors.New("not ready")
)
