package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SizeLimitConfig struct {
	MaxBodySize int64
}

// DefaultSizeLimitConfig sizes for the largest legitimate payload: a proactive
// submission with a few thousand recipients.
func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{MaxBodySize: 2 << 20}
}

// SizeLimit rejects oversized bodies before a handler buffers them. The
// declared Content-Length is checked up front and MaxBytesReader backstops
// chunked requests that omit it.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > config.MaxBodySize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Code:      http.StatusRequestEntityTooLarge,
				Message:   fmt.Sprintf("request body exceeds %d bytes", config.MaxBodySize),
				RequestID: c.GetString(ContextRequestID),
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodySize)
		c.Next()
	}
}
