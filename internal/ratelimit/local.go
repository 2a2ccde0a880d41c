package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps one token bucket per subject in memory. Buckets idle
// for longer than two windows are evicted on the next call.
type LocalLimiter struct {
	mu       sync.Mutex
	capacity int
	limit    rate.Limit
	idle     time.Duration
	now      func() time.Time
	buckets  map[string]*localBucket
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(capacity int, window time.Duration) (*LocalLimiter, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}

	return &LocalLimiter{
		capacity: capacity,
		limit:    rate.Limit(float64(capacity) / window.Seconds()),
		idle:     2 * window,
		now:      time.Now,
		buckets:  make(map[string]*localBucket),
	}, nil
}

func (l *LocalLimiter) Allow(_ context.Context, subject string) (Decision, error) {
	subject = normalizeSubject(subject)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evict(now)
	bucket, ok := l.buckets[subject]
	if !ok {
		bucket = &localBucket{limiter: rate.NewLimiter(l.limit, l.capacity)}
		l.buckets[subject] = bucket
	}
	bucket.lastSeen = now

	reservation := bucket.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}

	return Decision{
		Allowed:   true,
		Remaining: int64(bucket.limiter.TokensAt(now)),
	}, nil
}

func (l *LocalLimiter) evict(now time.Time) {
	for subject, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > l.idle {
			delete(l.buckets, subject)
		}
	}
}
