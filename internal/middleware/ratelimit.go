package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per signed-in user. Requests without a
// session are keyed by client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu    sync.Mutex
	users map[string]*userLimiter
	now   func() time.Time
	log   logrus.FieldLogger
}

func NewRateLimiter(requestsPerMinute, burst int, log logrus.FieldLogger) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit: rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst: burst,
		idle:  10 * time.Minute,
		users: make(map[string]*userLimiter),
		now:   time.Now,
		log:   log.WithField("component", "rate_limiter"),
	}
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	ul, ok := rl.users[key]
	if !ok {
		rl.cleanup(now)
		ul = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.users[key] = ul
	}
	ul.lastSeen = now
	return ul.limiter.AllowN(now, 1)
}

// cleanup drops buckets idle for longer than rl.idle. Caller holds rl.mu.
func (rl *RateLimiter) cleanup(now time.Time) {
	for key, ul := range rl.users {
		if now.Sub(ul.lastSeen) > rl.idle {
			delete(rl.users, key)
		}
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if s := SessionFrom(c); s.Authenticated() {
			key = s.Email
		}
		if !rl.Allow(key) {
			rl.log.WithFields(logrus.Fields{"key": key, "path": c.FullPath()}).Debug("Request rejected by rate limiter")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please slow down"})
			return
		}
		c.Next()
	}
}
