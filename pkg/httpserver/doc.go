// Package httpserver runs the HTTP surface of an OIDC client: the callback
// endpoint, guarded pages, metrics and health checks.
//
// Server wraps net/http with lifecycle hooks. Start hooks run before the
// listener opens, which is where a provider is mounted and a stale state
// sweeper is started. Stop hooks run in reverse order after the listener
// closed, bounded together with http.Server.Shutdown by the shutdown
// timeout. Run returns when its context is done, on interrupt or TERM, or
// after Shutdown.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithStartHook(provider.Mount),
//		httpserver.WithStopHook(provider.Unmount),
//	)
//	r := chi.NewRouter()
//	r.Get("/readyz", httpserver.HealthCheckHandler(log, httpserver.ReadyCheck(provider.Ready())))
//	err := srv.Run(ctx, r)
//
// Errors are joined with ErrStart or ErrShutdown and can be matched with
// errors.Is.
package httpserver
