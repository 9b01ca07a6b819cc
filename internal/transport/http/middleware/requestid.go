package middleware

import (
	"github.com/ErlanBelekov/vm-power-scheduler/internal/requestid"
	"github.com/gin-gonic/gin"
)

const maxRequestIDLen = 128

// RequestID injects a request ID into the context and response header.
// A well-formed incoming X-Request-ID is preserved; anything else is
// replaced with a new UUID v4 before it reaches the logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if !validRequestID(id) {
			id = requestid.New()
		}

		ctx := requestid.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
