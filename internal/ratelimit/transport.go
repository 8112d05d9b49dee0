package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"crosslink/internal/logging"
)

// Transport puts every request through a Limiter, turns 429 responses into
// a shared cooldown, and retries 502/503 with exponential backoff.
type Transport struct {
	Base    http.RoundTripper
	Limiter *Limiter
	Backoff Backoff

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, limiter *Limiter) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		Base:    base,
		Limiter: limiter,
		Backoff: DefaultBackoff(),
		sleep:   Sleep,
		now:     time.Now,
	}
}

// WithSleeper overrides how backoff waits are performed (useful for tests).
func (t *Transport) WithSleeper(sleep func(context.Context, time.Duration) error) *Transport {
	t.sleep = sleep
	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	retries := t.Backoff.Retries
	if retries < 0 || !replayable {
		retries = 0
	}

	for attempt := 0; ; attempt++ {
		if t.Limiter != nil {
			if err := t.Limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}
		outgoing, err := t.attemptRequest(req, attempt)
		if err != nil {
			return nil, err
		}
		resp, err := t.Base.RoundTrip(outgoing)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := ParseRetryAfter(resp.Header.Get("Retry-After"), t.now())
			if t.Limiter != nil {
				t.Limiter.RecordRateLimitResponse(ctx, wait)
			}
			if attempt >= retries {
				return resp, nil
			}
			drain(resp)
			if t.Limiter == nil {
				if err := t.sleep(ctx, max(wait, t.Backoff.Delay(attempt+1))); err != nil {
					return nil, err
				}
			}
		case Transient(resp.StatusCode):
			if attempt >= retries {
				return resp, nil
			}
			drain(resp)
			delay := t.Backoff.Delay(attempt + 1)
			logging.FromContext(ctx).Debug("transient upstream error, backing off",
				slog.String("host", req.URL.Host),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay))
			if err := t.sleep(ctx, delay); err != nil {
				return nil, err
			}
		default:
			return resp, nil
		}
	}
}

func (t *Transport) attemptRequest(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
