package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	minLimit  = 0.1
	backOffBy = 2.0
	recoverBy = 1.5

	// AWS JSON APIs (ECS, ECR) report the error code in this header,
	// with a 400 status rather than a 429 when throttling.
	amznErrorTypeHeader = "X-Amzn-Errortype"
)

// RateLimiters keeps track of per-host rate limiting for the AWS API
// endpoints used in a run.
//
// Use `*RateLimiters.Transport(rt)` to obtain a rate limited HTTP
// transport for an AWS client. The transport reacts to a throttling
// response by reducing the limit for that host, and to a successful
// response by increasing it modestly back towards the given ideal.
type RateLimiters struct {
	RPS     float64
	Burst   int
	Logger  log.Logger
	perHost map[string]*rate.Limiter
	mu      sync.Mutex
}

func (limiters *RateLimiters) clip(limit float64) float64 {
	if limit < minLimit {
		return minLimit
	}
	if limit > limiters.RPS {
		return limiters.RPS
	}
	return limit
}

// limiter returns the limiter for host, creating it if necessary. The
// caller must hold the lock.
func (limiters *RateLimiters) limiter(host string) *rate.Limiter {
	if limiters.perHost == nil {
		limiters.perHost = map[string]*rate.Limiter{}
	}
	rl, ok := limiters.perHost[host]
	if !ok {
		rl = rate.NewLimiter(rate.Limit(limiters.RPS), limiters.Burst)
		limiters.perHost[host] = rl
	}
	return rl
}

func (limiters *RateLimiters) backOff(host string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()

	limiter := limiters.limiter(host)
	oldLimit := float64(limiter.Limit())
	newLimit := limiters.clip(oldLimit / backOffBy)
	if oldLimit != newLimit && limiters.Logger != nil {
		level.Info(limiters.Logger).Log("info", "reducing rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
	}
	limiter.SetLimit(rate.Limit(newLimit))
}

// Recover bumps the limit for host back up again.
func (limiters *RateLimiters) Recover(host string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	if limiters.perHost == nil {
		return
	}
	if limiter, ok := limiters.perHost[host]; ok {
		oldLimit := float64(limiter.Limit())
		newLimit := limiters.clip(oldLimit * recoverBy)
		if newLimit != oldLimit && limiters.Logger != nil {
			level.Debug(limiters.Logger).Log("info", "increasing rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
		}
		limiter.SetLimit(rate.Limit(newLimit))
	}
}

// limit returns the current limit for host, or the ideal if there
// have been no requests to it.
func (limiters *RateLimiters) limit(host string) float64 {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	return float64(limiters.limiter(host).Limit())
}

// Transport wraps rt so that every request waits on the limiter for
// its host.
func (limiters *RateLimiters) Transport(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &roundTripRateLimiter{limiters: limiters, tx: rt}
}

type roundTripRateLimiter struct {
	limiters *RateLimiters
	tx       http.RoundTripper
}

func (t *roundTripRateLimiter) RoundTrip(r *http.Request) (*http.Response, error) {
	host := r.URL.Host
	t.limiters.mu.Lock()
	rl := t.limiters.limiter(host)
	t.limiters.mu.Unlock()

	// Wait errors out if the request cannot be processed within
	// the deadline. This is pre-emptive, instead of waiting the
	// entire duration.
	if err := rl.Wait(r.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limited")
	}
	resp, err := t.tx.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if throttled(resp) {
		t.limiters.backOff(host)
	} else if resp.StatusCode < 300 {
		t.limiters.Recover(host)
	}
	return resp, err
}

func throttled(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(resp.Header.Get(amznErrorTypeHeader), "Throttling")
}
