package contact

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the limiter map; it is reset when exceeded.
const maxTrackedIPs = 10000

// Limiter throttles submissions per client IP with a token bucket.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewLimiter allows rps submissions per second per IP with the given burst.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether ip may submit now.
func (l *Limiter) Allow(ip string) bool {
	return l.get(ip).Allow()
}

func (l *Limiter) get(ip string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[ip]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[ip]; ok {
		return lim
	}
	if len(l.limiters) >= maxTrackedIPs {
		l.limiters = make(map[string]*rate.Limiter)
	}
	lim = rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = lim
	return lim
}

// Reset forgets every tracked IP.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.limiters = make(map[string]*rate.Limiter)
	l.mu.Unlock()
}
