// internal/middleware/request_id_middleware.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"serial2pipe/internal/utils"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags each request with an ID, reusing the caller's if given
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(utils.RequestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}
