package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/oidckit/pkg/logger"
)

// HealthCheckHandler serves liveness and readiness checks.
//
//   - Without checks it answers 200 "ALIVE".
//   - With checks it runs each one with the request context and answers
//     200 "READY" when all pass, 503 "NOT_READY" otherwise.
func HealthCheckHandler(log *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "ALIVE")
			return
		}

		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				log.WarnContext(r.Context(), "readiness check failed", logger.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, "NOT_READY")
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "READY")
	}
}

// ReadyCheck passes once ready is closed, for example oidcauth.Provider.Ready.
func ReadyCheck(ready <-chan struct{}) func(context.Context) error {
	return func(context.Context) error {
		select {
		case <-ready:
			return nil
		default:
			return ErrNotReady
		}
	}
}
