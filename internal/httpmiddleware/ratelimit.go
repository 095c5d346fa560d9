package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter applies a per-client token bucket. State lives in process
// memory, which is fine for a single instance; a multi-instance deployment
// would move this to Redis.
type RateLimiter struct {
	perMinute int

	mu      sync.Mutex
	clients map[string]*clientBucket
	sweep   time.Time
}

type clientBucket struct {
	remaining float64
	refilled  time.Time
}

// NewRateLimiter allows perMinute requests per client IP, with bursts up
// to the same amount.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*clientBucket),
		sweep:     time.Now(),
	}
}

// Middleware rejects over-limit requests with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !rl.take(key, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) take(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Drop buckets idle for over an hour so the map does not grow forever.
	if now.Sub(rl.sweep) > time.Hour {
		for k, b := range rl.clients {
			if now.Sub(b.refilled) > time.Hour {
				delete(rl.clients, k)
			}
		}
		rl.sweep = now
	}

	b, ok := rl.clients[key]
	if !ok {
		b = &clientBucket{remaining: float64(rl.perMinute), refilled: now}
		rl.clients[key] = b
	}

	b.remaining += now.Sub(b.refilled).Minutes() * float64(rl.perMinute)
	if b.remaining > float64(rl.perMinute) {
		b.remaining = float64(rl.perMinute)
	}
	b.refilled = now

	if b.remaining < 1 {
		return false
	}
	b.remaining--
	return true
}
