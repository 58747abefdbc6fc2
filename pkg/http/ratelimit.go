package http

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	minLimit  = 0.1
	backOffBy = 2.0
	recoverBy = 1.5
)

// RateLimiter throttles requests to a single remote. The RoundTripper
// it hands out reacts to `HTTP 429 Too many requests` by halving the
// limit; call Recover after a run of successful requests to creep back
// towards RPS.
type RateLimiter struct {
	RPS    float64
	Burst  int
	Logger log.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

func (l *RateLimiter) clip(limit float64) float64 {
	if limit < minLimit {
		return minLimit
	}
	if limit > l.RPS {
		return l.RPS
	}
	return limit
}

func (l *RateLimiter) get() *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limiter == nil {
		burst := l.Burst
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(l.RPS), burst)
	}
	return l.limiter
}

func (l *RateLimiter) adjust(factor float64, msg string) {
	limiter := l.get()
	l.mu.Lock()
	defer l.mu.Unlock()
	oldLimit := float64(limiter.Limit())
	newLimit := l.clip(oldLimit * factor)
	if oldLimit != newLimit && l.Logger != nil {
		l.Logger.Log("info", msg, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
	}
	limiter.SetLimit(rate.Limit(newLimit))
}

func (l *RateLimiter) backOff() {
	l.adjust(1/backOffBy, "reducing rate limit")
}

// Recover bumps the limit back up after requests have succeeded.
func (l *RateLimiter) Recover() {
	l.adjust(recoverBy, "increasing rate limit")
}

// RoundTripper wraps rt. With a non-positive RPS, rt is returned
// unchanged.
func (l *RateLimiter) RoundTripper(rt http.RoundTripper) http.RoundTripper {
	if l == nil || l.RPS <= 0 {
		return rt
	}
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &roundTripRateLimiter{rl: l.get(), tx: rt, slowDown: l.backOff}
}

type roundTripRateLimiter struct {
	rl       *rate.Limiter
	tx       http.RoundTripper
	slowDown func()
}

func (t *roundTripRateLimiter) RoundTrip(r *http.Request) (*http.Response, error) {
	// Wait errors out if the request cannot be processed within
	// the deadline. This is pre-emptive, instead of waiting the
	// entire duration.
	if err := t.rl.Wait(r.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limited")
	}
	resp, err := t.tx.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		t.slowDown()
	}
	return resp, err
}
