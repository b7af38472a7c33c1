package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
}

// RateLimiter is a process-wide token bucket guarding the API. Per-profile
// send pacing is the engine's job; this only protects the HTTP surface.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(config.Rate, config.Burst)}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Code:      http.StatusTooManyRequests,
				Message:   "rate limit exceeded",
				RequestID: c.GetString(ContextRequestID),
			})
			return
		}
		c.Next()
	}
}
