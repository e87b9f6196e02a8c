package agent

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per agent endpoint with a token bucket.
// Agents that prompt the user tend to queue or drop bursts, so every
// endpoint gets its own bucket.
type RateLimiter struct {
	limiters   map[string]*rate.Limiter
	mu         sync.RWMutex
	rateLimit  rate.Limit
	burstLimit int
}

// NewRateLimiter creates a limiter allowing ratePerSecond requests per
// endpoint with the given burst. A non-positive rate disables limiting.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		rateLimit:  limit,
		burstLimit: burst,
	}
}

// Allow reports whether a request to endpoint may proceed now.
func (r *RateLimiter) Allow(endpoint string) bool {
	return r.limiter(endpoint).Allow()
}

// Wait blocks until a request to endpoint is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	return r.limiter(endpoint).Wait(ctx)
}

// Endpoints returns how many endpoints currently have a bucket.
func (r *RateLimiter) Endpoints() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

func (r *RateLimiter) limiter(endpoint string) *rate.Limiter {
	r.mu.RLock()
	l, ok := r.limiters[endpoint]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok = r.limiters[endpoint]; ok {
		return l
	}
	l = rate.NewLimiter(r.rateLimit, r.burstLimit)
	r.limiters[endpoint] = l
	return l
}
