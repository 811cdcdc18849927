package usermanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/oidckit/pkg/logger"
)

// StaleStateClearer removes abandoned request state. *UserManager
// implements it.
type StaleStateClearer interface {
	ClearStaleState(ctx context.Context) error
}

// DefaultSweepSchedule runs the sweep every five minutes.
const DefaultSweepSchedule = "@every 5m"

// Sweeper periodically clears stale request state on a cron schedule.
// Server deployments share one state store across many requests, so
// abandoned sign-ins accumulate there unless something removes them.
type Sweeper struct {
	clearer StaleStateClearer
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperLogger sets the sweeper logger.
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSweepTimeout bounds a single sweep. Defaults to 30 seconds.
func WithSweepTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSweeper creates a sweeper for the given cron schedule. An empty schedule uses
// DefaultSweepSchedule.
func NewSweeper(clearer StaleStateClearer, schedule string, opts ...SweeperOption) (*Sweeper, error) {
	if clearer == nil {
		return nil, errors.New("usermanager: sweeper needs a state clearer")
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &Sweeper{
		clearer: clearer,
		cron:    cron.New(),
		timeout: 30 * time.Second,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.cron.AddFunc(schedule, func() { _ = s.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("usermanager: invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running sweeps in the background.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep or ctx, whichever
// finishes first.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep runs a single sweep immediately.
func (s *Sweeper) Sweep(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.clearer.ClearStaleState(ctx); err != nil {
		s.logger.ErrorContext(ctx, "stale state sweep failed", logger.Error(err))
		return err
	}
	return nil
}
