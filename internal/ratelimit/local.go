package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxLocalKeys caps how many buckets LocalLimiter holds before sweeping idle ones.
const maxLocalKeys = 10000

// LocalLimiter enforces per-key limits with in-process token buckets. Each key
// refills limit tokens per DefaultWindow and may burst up to limit. It is the
// single-instance stand-in for RateLimiter when no Redis is configured.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	now     func() time.Time
}

// NewLocalLimiter creates an empty in-process limiter
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{buckets: make(map[string]*rate.Limiter), now: time.Now}
}

// AllowWithDetails takes one token from key's bucket. resetAt is when the next
// token becomes available.
func (l *LocalLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	now := l.now()
	perSecond := rate.Limit(float64(limit) / DefaultWindow.Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxLocalKeys {
			l.sweepLocked(now)
		}
		bucket = rate.NewLimiter(perSecond, limit)
		l.buckets[key] = bucket
	} else if bucket.Burst() != limit {
		bucket.SetLimitAt(now, perSecond)
		bucket.SetBurstAt(now, limit)
	}

	allowed := bucket.AllowN(now, 1)

	tokens := bucket.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))
	resetAt := now
	if tokens < 1 {
		wait := (1 - tokens) / float64(perSecond)
		resetAt = now.Add(time.Duration(wait * float64(time.Second)))
	}

	return allowed, remaining, resetAt, nil
}

// sweepLocked drops buckets that have refilled completely.
func (l *LocalLimiter) sweepLocked(now time.Time) {
	for key, bucket := range l.buckets {
		if bucket.TokensAt(now) >= float64(bucket.Burst()) {
			delete(l.buckets, key)
		}
	}
}
