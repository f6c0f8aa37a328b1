package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	// ClientTTL is how long an idle client's bucket is kept.
	ClientTTL time.Duration
	// KeyFunc identifies a client. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimiter keeps one token bucket per client.
type RateLimiter struct {
	config  RateLimiterConfig
	clients *cache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.ClientTTL <= 0 {
		config.ClientTTL = 10 * time.Minute
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	return &RateLimiter{
		config:  config,
		clients: cache.New(config.ClientTTL, config.ClientTTL*2),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := rl.clients.Get(key); ok {
		l := v.(*rate.Limiter)
		// refresh expiry so an active client keeps its bucket
		rl.clients.SetDefault(key, l)
		return l
	}
	l := rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	if err := rl.clients.Add(key, l, cache.DefaultExpiration); err != nil {
		// lost the race against a concurrent request
		if v, ok := rl.clients.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	return rl.clients.ItemCount()
}

// retryAfter is the whole number of seconds until one token refills.
func (rl *RateLimiter) retryAfter() int {
	if rl.config.Rate <= 0 {
		return 1
	}
	secs := int(math.Ceil(1 / float64(rl.config.Rate)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		l := rl.limiter(rl.config.KeyFunc(c))
		if !l.Allow() {
			c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
