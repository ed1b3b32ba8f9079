package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginThrottle applies a token-bucket limit per owner to slow down password
// guessing. Idle buckets are pruned on access.
type LoginThrottle struct {
	mu      sync.Mutex
	buckets map[string]*loginBucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
}

type loginBucket struct {
	lim *rate.Limiter
	ts  time.Time
}

// NewLoginThrottle allows perMinute attempts per owner with the given burst.
func NewLoginThrottle(perMinute, burst int) *LoginThrottle {
	return &LoginThrottle{
		buckets: make(map[string]*loginBucket),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		ttl:     5 * time.Minute,
	}
}

// Allow reports whether another login attempt for the owner may proceed.
func (t *LoginThrottle) Allow(owner string) bool {
	if owner == "" {
		owner = "unknown"
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for key, b := range t.buckets {
		if now.Sub(b.ts) > t.ttl {
			delete(t.buckets, key)
		}
	}

	b, ok := t.buckets[owner]
	if !ok {
		b = &loginBucket{lim: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[owner] = b
	}
	b.ts = now
	return b.lim.Allow()
}
