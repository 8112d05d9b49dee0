// Package ratelimit coordinates outbound request budgets across stateless
// instances through a shared kvstore.Store.
//
// State is read, modified and written back without a lock, so concurrent
// callers can under-count and briefly exceed the configured budget. The
// upstream still enforces its hard limit with a 429, which feeds back into
// the shared cooldown.
package ratelimit

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"crosslink/internal/kvstore"
	"crosslink/internal/logging"
)

const (
	DefaultWindow        = 60 * time.Second
	DefaultMaxSleep      = 10 * time.Second
	DefaultMaxJitter     = time.Second
	DefaultMaxIterations = 32
	defaultRetryAfter    = 2 * time.Second
)

// State is the persisted per-upstream counter. Timestamps are unix
// milliseconds; RequestCount is only meaningful relative to WindowStart.
type State struct {
	RequestCount  int   `json:"requestCount"`
	WindowStart   int64 `json:"windowStart"`
	CooldownUntil int64 `json:"cooldownUntil,omitempty"`
}

type Config struct {
	// Name identifies the upstream, e.g. "spotify".
	Name          string
	MaxRequests   int
	Window        time.Duration
	MaxSleep      time.Duration
	MaxJitter     time.Duration
	MaxIterations int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxSleep <= 0 {
		c.MaxSleep = DefaultMaxSleep
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	} else if c.MaxJitter == 0 {
		c.MaxJitter = DefaultMaxJitter
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = 1
	}
	return c
}

type Limiter struct {
	store  kvstore.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	jitter func(time.Duration) time.Duration
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleeper overrides how waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// WithJitter overrides the random component added to window waits.
func WithJitter(jitter func(max time.Duration) time.Duration) Option {
	return func(l *Limiter) { l.jitter = jitter }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func New(store kvstore.Store, cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		sleep:  Sleep,
		jitter: RandomJitter,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.NewComponentLogger(l.logger, "ratelimit").With(slog.String("upstream", l.cfg.Name))
	return l
}

func (l *Limiter) key() string { return "ratelimit:" + l.cfg.Name }

// Acquire waits until the shared window admits one more request. It only
// fails when ctx is done; after MaxIterations re-checks the request is let
// through and the upstream's own limit takes over.
func (l *Limiter) Acquire(ctx context.Context) error {
	for i := 0; i < l.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := l.now()
		nowMs := now.UnixMilli()
		st := l.load(ctx)

		if st.CooldownUntil > nowMs {
			wait := min(time.Duration(st.CooldownUntil-nowMs)*time.Millisecond, l.cfg.MaxSleep)
			l.logger.Debug("rate limit cooldown", slog.Duration("wait", wait))
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		windowMs := l.cfg.Window.Milliseconds()
		if nowMs-st.WindowStart >= windowMs {
			l.save(ctx, State{RequestCount: 1, WindowStart: nowMs})
			return nil
		}

		if st.RequestCount >= l.cfg.MaxRequests {
			remaining := time.Duration(st.WindowStart+windowMs-nowMs) * time.Millisecond
			wait := min(remaining, l.cfg.MaxSleep) + l.jitter(l.cfg.MaxJitter)
			l.logger.Debug("rate limit window full",
				slog.Int("requests", st.RequestCount),
				slog.Duration("wait", wait))
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		st.RequestCount++
		l.save(ctx, st)
		return nil
	}
	l.logger.Warn("rate limiter gave up waiting, admitting request",
		slog.Int("iterations", l.cfg.MaxIterations))
	return nil
}

// RecordRateLimitResponse starts a shared cooldown after an upstream 429.
// A non-positive retryAfter falls back to a short default.
func (l *Limiter) RecordRateLimitResponse(ctx context.Context, retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	now := l.now().UnixMilli()
	l.logger.Warn("upstream rate limited", slog.Duration("retry_after", retryAfter))
	l.save(ctx, State{
		RequestCount:  0,
		WindowStart:   now,
		CooldownUntil: now + retryAfter.Milliseconds(),
	})
}

// Snapshot returns the stored state, mainly for diagnostics.
func (l *Limiter) Snapshot(ctx context.Context) State { return l.load(ctx) }

// A store failure reads as a fresh window so requests are never blocked on
// the cache.
func (l *Limiter) load(ctx context.Context) State {
	var st State
	found, err := kvstore.GetJSON(ctx, l.store, l.key(), &st)
	if err != nil {
		l.logger.Warn("rate limit state unavailable", logging.Error(err))
		return State{}
	}
	if !found {
		return State{}
	}
	return st
}

func (l *Limiter) save(ctx context.Context, st State) {
	ttl := l.cfg.Window
	if st.CooldownUntil > 0 {
		ttl += time.Duration(st.CooldownUntil-st.WindowStart) * time.Millisecond
	}
	if err := kvstore.PutJSON(ctx, l.store, l.key(), st, ttl+time.Second); err != nil {
		l.logger.Warn("rate limit state not saved", logging.Error(err))
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RandomJitter returns a uniformly random duration in [0, max).
func RandomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
