package utils

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// RateLimit throttles requests per client IP. Used on the public payment
// endpoints so a misbehaving caller cannot flood the gateway with prompts.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*ipLimiter)
	)

	// Drop limiters for IPs not seen in a while.
	go func() {
		for range time.Tick(5 * time.Minute) {
			mu.Lock()
			for ip, l := range limiters {
				if time.Since(l.last) > 30*time.Minute {
					delete(limiters, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		l, ok := limiters[ip]
		if !ok {
			l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[ip] = l
		}
		l.last = time.Now()
		mu.Unlock()

		if !l.limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
