package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/oidckit/pkg/httpserver"
	"github.com/dmitrymomot/oidckit/pkg/logger"
	"github.com/dmitrymomot/oidckit/pkg/oidcauth"
	"github.com/dmitrymomot/oidckit/pkg/redis"
	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

// runServer serves the sign-in flow over HTTP until ctx is done. Each
// browser gets its own provider, keyed by a session cookie. rdb is nil when
// redis is not configured.
func runServer(ctx context.Context, cfg appConfig, log *slog.Logger, rdb goredis.UniversalClient, userStore, stateStore usermanager.Store) error {
	reg := prometheus.NewRegistry()
	sess, err := newSessions(cfg.OIDC, cfg.Sessions, userStore, stateStore, oidcauth.NewMetrics(reg), log)
	if err != nil {
		return err
	}
	reg.MustRegister(sess.Collector())

	sweeper, err := usermanager.NewSweeper(sess, cfg.SweepSchedule, usermanager.WithSweeperLogger(log))
	if err != nil {
		return err
	}

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(context.Context) error {
			sweeper.Start()
			return nil
		}),
		httpserver.WithStopHook(sess.Close),
		httpserver.WithStopHook(sweeper.Stop),
	)

	checks := []func(context.Context) error{httpserver.ReadyCheck(srv.Started()), sess.Healthcheck}
	if rdb != nil {
		checks = append(checks, redis.Healthcheck(rdb))
	}
	return srv.Run(ctx, newRouter(sess, reg, log, checks...))
}

func newRouter(sess *sessions, reg *prometheus.Registry, log *slog.Logger, checks ...func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthCheckHandler(log))
	r.Get("/readyz", httpserver.HealthCheckHandler(log, checks...))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(sess.Middleware)
		r.Get("/callback", func(w http.ResponseWriter, r *http.Request) {
			sessionProvider(r.Context()).CallbackHandler().ServeHTTP(w, r)
		})

		r.With(oidcauth.RequireAuthentication(
			oidcauth.WithOnRedirecting(redirectingPage()),
			oidcauth.WithGuardErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				log.ErrorContext(r.Context(), "guard failed", logger.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}),
		)).Get("/me", meHandler)

		r.Post("/signout", func(w http.ResponseWriter, r *http.Request) {
			if err := oidcauth.MustFromContext(r.Context()).RemoveUser(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "remove user failed", logger.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	u := oidcauth.MustFromContext(r.Context()).User
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"subject": u.Subject(),
		"scopes":  u.Scopes(),
		"profile": u.Profile,
	})
}

func redirectingPage() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!doctype html><html><body><p>Redirecting to sign in…</p></body></html>`)
		return err
	})
}
