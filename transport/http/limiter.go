package http

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxLimiterKeys bounds the per-client buckets. The least recently seen
// client is evicted first.
const maxLimiterKeys = 10000

// RateLimiter hands out one token bucket per client key
type RateLimiter struct {
	limits *lru.Cache[string, *rate.Limiter]
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
}

// NewRateLimiter creates a limiter allowing limit events per second with burst
func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return newRateLimiter(limit, burst, maxLimiterKeys)
}

func newRateLimiter(limit rate.Limit, burst, size int) *RateLimiter {
	limits, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		panic(err)
	}
	return &RateLimiter{
		limits: limits,
		limit:  limit,
		burst:  burst,
	}
}

// Limit returns the bucket for key
func (r *RateLimiter) Limit(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok := r.limits.Get(key); ok {
		return limiter
	}
	limiter := rate.NewLimiter(r.limit, r.burst)
	r.limits.Add(key, limiter)
	return limiter
}

// RateLimitMiddleware rejects clients that exceed their bucket with 429.
// Clients are keyed by c.ClientIP, which only honours forwarding headers
// from the router's trusted proxies.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Limit(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
