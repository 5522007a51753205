package http

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/appointment-service/internal/config"
	"golang.org/x/time/rate"
)

const defaultLimiterIdle = 10 * time.Minute

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ipLimiters hands out one token bucket per client IP. Buckets unused for idle are
// dropped by a sweep that runs at most once per idle period.
type ipLimiters struct {
	mu        sync.Mutex
	buckets   map[string]*ipLimiter
	rps       rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiters(rps, burst int, idle time.Duration) *ipLimiters {
	if idle <= 0 {
		idle = defaultLimiterIdle
	}
	return &ipLimiters{
		buckets:   make(map[string]*ipLimiter),
		rps:       rate.Limit(rps),
		burst:     burst,
		idle:      idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.idle {
				delete(l.buckets, key)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &ipLimiter{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.lim
}

func (l *ipLimiters) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimitMiddleware is a token bucket per client IP.
func RateLimitMiddleware(rl config.RateLimitConfig) gin.HandlerFunc {
	limiters := newIPLimiters(rl.RPS, rl.Burst, rl.IdleTTL)
	return rateLimit(limiters)
}

func rateLimit(limiters *ipLimiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}
		if !limiters.get(ip).Allow() {
			retry := 1
			if limiters.rps > 0 {
				retry = int(1/float64(limiters.rps)) + 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, failure("rate limit exceeded"))
			return
		}
		c.Next()
	}
}
