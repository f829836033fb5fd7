package folio

import (
	"sync"
	"time"
)

// LoginLimiter rate-limits failed sign-in attempts per IP address with a
// sliding window.
type LoginLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
}

// NewLoginLimiter creates a LoginLimiter that allows max attempts per window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// Prune drops attempts older than the window and forgets idle IPs. It
// returns how many IPs were forgotten.
func (l *LoginLimiter) Prune() int {
	cutoff := l.now().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for ip, hits := range l.attempts {
		kept := recent(hits, cutoff)
		if len(kept) == 0 {
			delete(l.attempts, ip)
			removed++
		} else {
			l.attempts[ip] = kept
		}
	}
	return removed
}

// Check returns true if the IP has not exceeded the rate limit.
// It does not record an attempt; call Record separately on failure.
func (l *LoginLimiter) Check(ip string) bool {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := recent(l.attempts[ip], cutoff)
	if len(kept) == 0 {
		delete(l.attempts, ip)
		return true
	}
	l.attempts[ip] = kept
	return len(kept) < l.max
}

// Record registers a failed sign-in attempt for the given IP.
func (l *LoginLimiter) Record(ip string) {
	l.mu.Lock()
	l.attempts[ip] = append(l.attempts[ip], l.now())
	l.mu.Unlock()
}

// Reset forgets the IP's attempts after a successful sign-in.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	delete(l.attempts, ip)
	l.mu.Unlock()
}

// Len returns the number of tracked IPs.
func (l *LoginLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

func recent(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
