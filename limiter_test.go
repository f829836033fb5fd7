package folio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fail records a failed attempt when the limiter still lets ip through.
func fail(l *LoginLimiter, ip string) bool {
	if !l.Check(ip) {
		return false
	}
	l.Record(ip)
	return true
}

func fakeClock(l *LoginLimiter) *time.Time {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return &now
}

func TestLoginLimiterBlocksAfterMax(t *testing.T) {
	limiter := NewLoginLimiter(2, time.Minute)
	fakeClock(limiter)
	ip := "203.0.113.10"

	assert.True(t, fail(limiter, ip))
	assert.True(t, fail(limiter, ip))
	assert.False(t, fail(limiter, ip))
}

func TestLoginLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewLoginLimiter(1, time.Minute)
	now := fakeClock(limiter)
	ip := "203.0.113.20"

	assert.True(t, fail(limiter, ip))
	assert.False(t, fail(limiter, ip))

	*now = now.Add(61 * time.Second)
	assert.True(t, fail(limiter, ip))
}

func TestLoginLimiterIsPerIP(t *testing.T) {
	limiter := NewLoginLimiter(1, time.Minute)
	fakeClock(limiter)

	assert.True(t, fail(limiter, "203.0.113.30"))
	assert.True(t, fail(limiter, "203.0.113.31"))
	assert.False(t, fail(limiter, "203.0.113.30"))
}

func TestLoginLimiterCheckDoesNotRecord(t *testing.T) {
	limiter := NewLoginLimiter(1, time.Minute)
	fakeClock(limiter)
	ip := "203.0.113.40"

	assert.True(t, limiter.Check(ip))
	assert.True(t, limiter.Check(ip))
	limiter.Record(ip)
	assert.False(t, limiter.Check(ip))

	limiter.Reset(ip)
	assert.True(t, limiter.Check(ip))
}

func TestLoginLimiterPrune(t *testing.T) {
	limiter := NewLoginLimiter(3, time.Minute)
	now := fakeClock(limiter)

	limiter.Record("203.0.113.50")
	*now = now.Add(30 * time.Second)
	limiter.Record("203.0.113.51")
	assert.Equal(t, 2, limiter.Len())

	*now = now.Add(45 * time.Second)
	assert.Equal(t, 1, limiter.Prune())
	assert.Equal(t, 1, limiter.Len())
}
