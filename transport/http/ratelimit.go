package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/regrant/regrant-auth/metrics"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds per-client rate limit settings
type RateLimiterConfig struct {
	Rate            rate.Limit    // Requests per second
	Burst           int           // Bucket size
	CleanupInterval time.Duration // How often idle clients are dropped
	IdleTimeout     time.Duration // A client unseen for this long loses its bucket
}

// PerMinute returns a config allowing n requests per minute per client
func PerMinute(n int) RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            rate.Limit(float64(n) / 60.0),
		Burst:           n,
		CleanupInterval: 5 * time.Minute,
		IdleTimeout:     10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps a token bucket per client IP
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects clients over their budget with 429
func (rl *RateLimiter) Middleware(recorder metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter(c.ClientIP()).Allow() {
			recorder.RecordRateLimited(c.FullPath())
			c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Too many requests"})
			return
		}

		c.Next()
	}
}

// Count returns the number of tracked clients
func (rl *RateLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, exists := rl.limiters[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.limiters[key] = cl
	}
	cl.lastAccess = time.Now()

	return cl.limiter
}

func (rl *RateLimiter) retryAfter() int {
	if rl.config.Rate <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(rl.config.Rate)))
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > rl.config.IdleTimeout {
			delete(rl.limiters, key)
		}
	}
}
