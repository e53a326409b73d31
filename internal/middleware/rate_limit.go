package middleware

import (
	"context"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gigconnect/gigconnect/internal/apierrors"
)

// RateRule allows Limit calls per sliding Window.
type RateRule struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a per-key sliding-window rate limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, rule RateRule) (Decision, error)
}

// MemoryLimiter keeps a timestamp log per key in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	now     func() time.Time
	cleanup time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryLimiter creates a limiter and starts its stale-key sweeper.
func NewMemoryLimiter() *MemoryLimiter {
	l := &MemoryLimiter{
		hits:    make(map[string][]time.Time),
		now:     time.Now,
		cleanup: 10 * time.Minute,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow records a hit for key if it fits in the window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, rule RateRule) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-rule.Window)
	hits := l.hits[key]
	kept := hits[:0]
	for _, ts := range hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rule.Limit {
		l.hits[key] = kept
		retry := time.Duration(0)
		if len(kept) > 0 {
			retry = kept[0].Add(rule.Window).Sub(now)
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
	}

	kept = append(kept, now)
	l.hits[key] = kept
	return Decision{Allowed: true, Remaining: rule.Limit - len(kept)}, nil
}

// Close stops the sweeper.
func (l *MemoryLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *MemoryLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.cleanup)
	for key, hits := range l.hits {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(l.hits, key)
		}
	}
}

// RateLimitByUser limits one operation per authenticated identity. It must run
// after BearerAuth. Limiter failures let the request through.
func RateLimitByUser(limiter Limiter, operation string, rule RateRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			userID = "ip:" + c.ClientIP()
		}
		key := "ratelimit:" + operation + ":" + userID

		decision, err := limiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			log.Printf("rate limit: %s check failed, allowing request: %v", key, err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
			apierrors.Error(c, apierrors.CodeRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
