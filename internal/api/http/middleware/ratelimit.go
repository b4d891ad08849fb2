package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterCleanupInterval = 5 * time.Minute

// RateLimitConfig allows RequestsPerWindow requests per Window with bursts up
// to Burst. A zero RequestsPerWindow disables limiting.
type RateLimitConfig struct {
	RequestsPerWindow int           `mapstructure:"requests"`
	Window            time.Duration `mapstructure:"window"`
	Burst             int           `mapstructure:"burst"`
}

type Limits struct {
	Enrollment RateLimitConfig `mapstructure:"enrollment"`
}

var DefaultEnrollmentLimit = RateLimitConfig{
	RequestsPerWindow: 20,
	Window:            time.Minute,
	Burst:             20,
}

type ipLimiter struct {
	limiters    sync.Map // client IP -> *rate.Limiter
	rate        rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func (l *ipLimiter) get(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	l.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket is full again.
func (l *ipLimiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < limiterCleanupInterval {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

func RateLimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerWindow <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerWindow
	}

	l := &ipLimiter{
		rate:        rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}

	return func(c *gin.Context) {
		key := c.ClientIP()
		limiter := l.get(key)
		if limiter.Allow() {
			c.Next()
			return
		}

		reservation := limiter.Reserve()
		retryAfter := max(int(reservation.Delay().Seconds()), 1)
		reservation.Cancel()

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
		c.Header("X-RateLimit-Window", cfg.Window.String())

		slog.Warn("Rate limit exceeded",
			"client_ip", key,
			"path", c.Request.URL.Path,
			"retry_after", retryAfter)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
	}
}
