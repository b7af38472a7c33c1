package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type TimeoutConfig struct {
	Duration time.Duration
}

// DefaultTimeoutConfig leaves headroom over the 45s reactive send path, which
// is the slowest request this API serves.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{Duration: 60 * time.Second}
}

// Timeout bounds request handling; an expired deadline answers 504.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Duration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				c.AbortWithStatusJSON(http.StatusGatewayTimeout, ErrorResponse{
					Code:      http.StatusGatewayTimeout,
					Message:   "request timed out",
					RequestID: c.GetString(ContextRequestID),
				})
			}
		}
	}
}
