// Command oidc-login signs in against an OpenID Connect provider.
//
// Without flags it completes a loopback sign-in: the authorization URL is
// printed, and the provider redirects the browser back to a listener on the
// loopback redirect URI. With -serve it runs an HTTP server exposing the
// callback endpoint, a guarded /me page, metrics and health checks. The
// server keeps one session per browser, tracked by an HttpOnly cookie.
//
// Settings come from OIDC_* environment variables, an optional .env file and
// an optional YAML file, in that order of precedence.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/oidckit/pkg/config"
	"github.com/dmitrymomot/oidckit/pkg/logger"
	"github.com/dmitrymomot/oidckit/pkg/oidcauth"
	"github.com/dmitrymomot/oidckit/pkg/redis"
	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

func main() {
	configFile := flag.String("config", "", "YAML configuration file")
	envFile := flag.String("env-file", "", "dotenv file loaded before reading the environment")
	serve := flag.Bool("serve", false, "serve the callback endpoint and a guarded /me page instead of signing in once")
	signout := flag.Bool("signout", false, "remove the stored user and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, *envFile, *serve, *signout); err != nil {
		fmt.Fprintln(os.Stderr, "oidc-login:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile, envFile string, serve, signout bool) error {
	var cfg appConfig
	opts := []config.Option{config.WithYAMLFile(configFile)}
	if envFile != "" {
		opts = append(opts, config.WithEnvFiles(envFile))
	}
	if err := config.Load(&cfg, opts...); err != nil {
		return err
	}

	log := newLogger(cfg.Log, os.Stderr)
	logger.SetAsDefault(log)

	var (
		rdb                   goredis.UniversalClient
		userStore, stateStore usermanager.Store
	)
	if cfg.Redis.ConnectionURL != "" {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		rdb = client
		userStore, stateStore = redisStores(client, cfg.Redis, cfg.OIDC.StaleStateAge)
		log.InfoContext(ctx, "using redis stores", slog.String("prefix", cfg.Redis.KeyPrefix))
	}

	if serve {
		return runServer(ctx, cfg, log, rdb, userStore, stateStore)
	}
	stores := []usermanager.Option{
		usermanager.WithUserStore(userStore),
		usermanager.WithStateStore(stateStore),
	}
	return runLogin(ctx, cfg, log, stores, signout, os.Stdout)
}

func newLogger(cfg logConfig, w io.Writer) *slog.Logger {
	return logger.New(
		logger.WithOutput(w),
		logger.WithEnvironment(logger.Environment(cfg.Env), "oidc-login"),
		logger.WithLevelName(cfg.Level),
		logger.WithFormat(logger.Format(cfg.Format)),
		logger.WithContextExtractors(requestIDExtractor),
	)
}

func requestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return logger.RequestID(id), true
	}
	return slog.Attr{}, false
}

// redisStores keeps users and request state under separate prefixes of one
// database. Request state expires after staleAge unless the configured TTL
// is shorter.
func redisStores(client goredis.UniversalClient, cfg redis.Config, staleAge time.Duration) (users, state usermanager.Store) {
	stateTTL := staleAge
	if cfg.TTL > 0 && (stateTTL <= 0 || cfg.TTL < stateTTL) {
		stateTTL = cfg.TTL
	}
	users = redis.NewStorage(client,
		redis.WithKeyPrefix(cfg.KeyPrefix+"user:"),
		redis.WithTTL(cfg.TTL),
		redis.WithScanBatchSize(cfg.ScanBatchSize),
	)
	state = redis.NewStorage(client,
		redis.WithKeyPrefix(cfg.KeyPrefix+"state:"),
		redis.WithTTL(stateTTL),
		redis.WithScanBatchSize(cfg.ScanBatchSize),
	)
	return users, state
}

// runLogin signs in once through the loopback navigator and prints the
// user's claims.
func runLogin(ctx context.Context, cfg appConfig, log *slog.Logger, stores []usermanager.Option, signout bool, out io.Writer) error {
	nav := &usermanager.LoopbackNavigator{
		Open: func(_ context.Context, rawURL string) error {
			_, err := fmt.Fprintf(out, "Open this URL in your browser to sign in:\n\n  %s\n\n", rawURL)
			return err
		},
		Timeout: cfg.LoginTimeout,
		Logger:  log,
	}

	p, err := oidcauth.New(
		oidcauth.WithSettings(cfg.OIDC, append(stores,
			usermanager.WithLogger(log),
			usermanager.WithPopupNavigator(nav),
		)...),
		oidcauth.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if err := p.Mount(ctx); err != nil {
		return err
	}
	defer func() {
		if err := p.Unmount(context.WithoutCancel(ctx)); err != nil {
			log.ErrorContext(ctx, "unmount failed", logger.Error(err))
		}
	}()

	select {
	case <-p.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	if signout {
		return p.Auth().RemoveUser(ctx)
	}

	if a := p.Auth(); a.Error == nil && !a.IsAuthenticated {
		auto := oidcauth.NewAutoSignin(
			oidcauth.WithSigninMethod(oidcauth.SigninMethodPopup),
			oidcauth.WithAutoSigninLogger(log),
		)
		auto.Use(ctx, a)
		select {
		case <-auto.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	a := p.Auth()
	if a.Error != nil {
		return a.Error
	}
	if a.User == nil {
		return errors.New("sign-in did not complete")
	}
	return printUser(out, a.User)
}

func printUser(out io.Writer, u *usermanager.User) error {
	summary := map[string]any{
		"subject": u.Subject(),
		"scopes":  u.Scopes(),
		"profile": u.Profile,
	}
	if d, ok := u.ExpiresIn(time.Now()); ok {
		summary["expires_in"] = d.Round(time.Second).String()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
