package transport

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter rate-limits requests per hostname. It is shared by every
// target of a run, so two companies hosted on the same IR platform do not
// double the load on it.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHostLimiter creates a limiter allowing reqPerSec requests per host
// with the given burst. A non-positive reqPerSec disables limiting.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	limit := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (hl *HostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if lim, ok := hl.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(hl.limit, hl.burst)
	hl.limiters[host] = lim
	return lim
}

// WaitURL blocks until a request to raw's host is allowed or ctx is done.
// A nil HostLimiter never blocks.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	if hl == nil {
		return ctx.Err()
	}
	host := "_"
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = strings.ToLower(u.Hostname())
	}
	return hl.limiterFor(host).Wait(ctx)
}
