package usermanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/oidckit/pkg/logger"
)

const loopbackDonePage = `<!doctype html><html><body><p>Authentication complete. You can close this window.</p></body></html>`

// LoopbackNavigator completes round-trip flows for native apps: it opens the
// provider URL with Open and waits for the provider to redirect back to a
// listener bound on the loopback redirect URI.
type LoopbackNavigator struct {
	// Open hands the URL to the user, for example by launching a browser or
	// printing it.
	Open func(ctx context.Context, rawURL string) error
	// Timeout bounds the wait for the callback; zero waits until ctx is done.
	Timeout time.Duration
	Logger  *slog.Logger
}

func (n *LoopbackNavigator) Navigate(ctx context.Context, params NavigateParams) (*url.URL, error) {
	if n.Open == nil {
		return nil, ErrNavigatorUnavailable
	}
	if params.ResponseMode == ResponseModeFragment {
		return nil, ErrUnsupportedResponseMode
	}
	redirect, err := url.Parse(params.RedirectURI)
	if err != nil || redirect.Scheme != "http" || !isLoopbackHost(redirect.Hostname()) {
		return nil, ErrNotLoopback
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("usermanager: listen on %s: %w", redirect.Host, err)
	}

	results := make(chan *url.URL, 1)
	srv := &http.Server{
		Handler:           n.router(redirect, params.State, results),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger().Error("loopback listener stopped", logger.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := n.Open(ctx, params.URL); err != nil {
		return nil, fmt.Errorf("usermanager: open %s: %w", params.URL, err)
	}

	var timeout <-chan time.Time
	if n.Timeout > 0 {
		t := time.NewTimer(n.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case u := <-results:
		return u, nil
	case <-timeout:
		return nil, ErrNavigationTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *LoopbackNavigator) router(redirect *url.URL, state string, results chan<- *url.URL) http.Handler {
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	r := chi.NewRouter()
	r.Get(path, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("state") != state {
			http.Error(w, "unknown state", http.StatusBadRequest)
			return
		}
		cb := *req.URL
		cb.Scheme = redirect.Scheme
		cb.Host = redirect.Host
		select {
		case results <- &cb:
		default:
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, loopbackDonePage)
	})
	return r
}

func (n *LoopbackNavigator) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return logger.Discard()
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
