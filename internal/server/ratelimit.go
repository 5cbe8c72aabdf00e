package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/chatmark/internal/config"
	chaterrors "github.com/conneroisu/chatmark/internal/errors"
	"github.com/conneroisu/chatmark/internal/logging"
)

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	buckets     map[string]*TokenBucket
	bucketMutex sync.RWMutex
	config      config.RateLimit
	logger      logging.Logger
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
}

// TokenBucket represents a token bucket for rate limiting
type TokenBucket struct {
	tokens     int
	capacity   int
	refillRate int // tokens per minute
	lastRefill time.Time
	lastAccess time.Time
	mutex      sync.Mutex
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetTime  time.Time
}

// NewRateLimiter creates a rate limiter and starts its bucket janitor. Call
// Stop to release it.
func NewRateLimiter(cfg config.RateLimit, logger logging.Logger) *RateLimiter {
	if logger == nil {
		logger = logging.Discard()
	}
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  cfg,
		logger:  logger,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go rl.cleanupExpiredBuckets(5 * time.Minute)

	return rl
}

// Check consumes a token for key, usually a client IP or user id.
func (rl *RateLimiter) Check(key string) RateLimitResult {
	if !rl.config.Enabled {
		return RateLimitResult{
			Allowed:   true,
			Remaining: rl.config.Burst,
		}
	}

	bucket := rl.getBucket(key)
	return bucket.consume(rl.now())
}

// getBucket gets or creates a token bucket for the given key
func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	now := rl.now()

	rl.bucketMutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.bucketMutex.RUnlock()

	if !exists {
		rl.bucketMutex.Lock()
		// Double-check after acquiring write lock
		if bucket, exists = rl.buckets[key]; !exists {
			bucket = &TokenBucket{
				tokens:     rl.config.Burst,
				capacity:   rl.config.Burst,
				refillRate: rl.config.RequestsPerMinute,
				lastRefill: now,
			}
			rl.buckets[key] = bucket
		}
		rl.bucketMutex.Unlock()
	}

	bucket.mutex.Lock()
	bucket.lastAccess = now
	bucket.mutex.Unlock()
	return bucket
}

// consume attempts to consume a token from the bucket
func (tb *TokenBucket) consume(now time.Time) RateLimitResult {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill(now)

	if tb.tokens > 0 {
		tb.tokens--
		return RateLimitResult{
			Allowed:   true,
			Remaining: tb.tokens,
			ResetTime: now.Add(time.Minute),
		}
	}

	retryAfter := time.Minute / time.Duration(tb.refillRate)
	return RateLimitResult{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: retryAfter,
		ResetTime:  now.Add(retryAfter),
	}
}

// refill adds tokens to the bucket based on elapsed time
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed < time.Second {
		return
	}

	tokensToAdd := int(elapsed.Minutes() * float64(tb.refillRate))
	if tokensToAdd > 0 {
		tb.tokens = min(tb.tokens+tokensToAdd, tb.capacity)
		tb.lastRefill = now
	}
}

// cleanupExpiredBuckets removes buckets that haven't been accessed recently
func (rl *RateLimiter) cleanupExpiredBuckets(every time.Duration) {
	defer close(rl.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.performCleanup(10 * time.Minute)
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) performCleanup(expiry time.Duration) {
	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	now := rl.now()
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if now.Sub(bucket.lastAccess) > expiry {
			delete(rl.buckets, key)
		}
		bucket.mutex.Unlock()
	}
}

// Stop stops the janitor goroutine and waits for it to exit.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
	<-rl.done
}

// RateLimitMiddleware creates HTTP middleware for rate limiting
func RateLimitMiddleware(limiter *RateLimiter, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			result := limiter.Check(clientIP)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.config.RequestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

			if !result.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", result.RetryAfter.Seconds()))
				metrics.rateLimited.WithLabelValues("http").Inc()

				limiter.logger.Warn(r.Context(),
					chaterrors.NewSecurityError("RATE_LIMIT_EXCEEDED", "rate limit exceeded"),
					"Rate limit exceeded",
					"client_ip", clientIP,
					"path", r.URL.Path,
					"method", r.Method)

				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
