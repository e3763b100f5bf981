package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Recorder is told about every rejected request.
type Recorder interface {
	RateLimited(scope string)
}

// Guard admits a request only if it fits every limiter, checked in order
// and keyed by gin's client IP. A rejected request is answered with 429
// before the handler runs and is not counted by any limiter.
func Guard(rec Recorder, limiters ...*Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		held := make([]*reservation, 0, len(limiters))
		for _, l := range limiters {
			res, wait, ok := l.reserve(key)
			if ok {
				held = append(held, res)
				continue
			}

			for _, h := range held {
				h.cancel()
			}
			if rec != nil {
				rec.RateLimited(l.Name)
			}
			c.Header("Retry-After", retryAfter(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
