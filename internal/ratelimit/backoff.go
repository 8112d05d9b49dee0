package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBackoffBase    = time.Second
	DefaultBackoffMax     = 10 * time.Second
	DefaultBackoffRetries = 3
)

// Backoff is the exponential retry schedule for transient upstream errors.
// It is independent of the shared limiter state.
type Backoff struct {
	Base    time.Duration
	Max     time.Duration
	Retries int
	Jitter  func(max time.Duration) time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:    DefaultBackoffBase,
		Max:     DefaultBackoffMax,
		Retries: DefaultBackoffRetries,
		Jitter:  RandomJitter,
	}
}

// Delay is the wait before retry number attempt (1-based):
// base, base*2, base*4, ... capped at Max, plus up to one second of jitter.
func (b Backoff) Delay(attempt int) time.Duration {
	base, maxDelay := b.Base, b.Max
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if maxDelay <= 0 {
		maxDelay = DefaultBackoffMax
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	delay = min(delay, maxDelay)
	if b.Jitter != nil {
		delay += b.Jitter(DefaultMaxJitter)
	}
	return delay
}

// Transient reports whether status is worth retrying with backoff.
func Transient(status int) bool {
	return status == http.StatusBadGateway || status == http.StatusServiceUnavailable
}

// ParseRetryAfter reads a Retry-After header given either as seconds or as an
// HTTP date.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := when.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
