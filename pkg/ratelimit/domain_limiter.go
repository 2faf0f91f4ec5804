package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxJitter bounds the random delay added to every fetch so that request
// timing never becomes a fixed, detectable interval.
const maxJitter = 500 * time.Millisecond

// DomainLimiter enforces per-domain crawl delays. All workers fetching from
// the same domain must share one DomainLimiter so the domain's crawl-delay is
// observed regardless of concurrency.
type DomainLimiter struct {
	mu           sync.Mutex
	lastRequest  map[string]time.Time
	defaultDelay time.Duration
	jitter       func() time.Duration
}

// NewDomainLimiter creates a limiter with the given default inter-request
// delay, used whenever a domain declares no crawl-delay of its own.
func NewDomainLimiter(defaultDelay time.Duration) *DomainLimiter {
	return &DomainLimiter{
		lastRequest:  make(map[string]time.Time),
		defaultDelay: defaultDelay,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxJitter)))
		},
	}
}

// Wait blocks until the domain's crawl delay has elapsed since the previous
// request, then records the new request time. The delay (plus jitter) applies
// even to the first fetch of a domain. requiredDelay overrides the default
// when positive, which is how robots.txt crawl-delays are honored.
func (dl *DomainLimiter) Wait(ctx context.Context, domain string, requiredDelay time.Duration) error {
	delay := dl.defaultDelay
	if requiredDelay > 0 {
		delay = requiredDelay
	}
	delay += dl.jitter()

	dl.mu.Lock()
	last, seen := dl.lastRequest[domain]
	now := time.Now()
	var wait time.Duration
	if seen {
		if elapsed := now.Sub(last); elapsed < delay {
			wait = delay - elapsed
		}
	} else {
		wait = delay
	}
	// Reserve the slot before sleeping so a concurrent caller for the same
	// domain queues behind this request instead of racing it.
	dl.lastRequest[domain] = now.Add(wait)
	dl.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestCount returns how many domains have been throttled so far.
func (dl *DomainLimiter) RequestCount() int {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return len(dl.lastRequest)
}

// SearchThrottle enforces a minimum wall-clock interval between consecutive
// calls to a metered search API. It is shared across all workers using the
// same API credentials.
type SearchThrottle struct {
	limiter *rate.Limiter
}

// NewSearchThrottle creates a throttle allowing one call per minInterval.
func NewSearchThrottle(minInterval time.Duration) *SearchThrottle {
	return &SearchThrottle{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Wait blocks until the next call is permitted or the context is cancelled.
func (st *SearchThrottle) Wait(ctx context.Context) error {
	return st.limiter.Wait(ctx)
}
