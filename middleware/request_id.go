package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-service/clients"
	"storefront-service/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an ID, echoes it in the response and
// stores it on the request context for logging and upstream calls.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, rid)
		}
		c.Set(logger.RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)

		ctx := logger.WithRequestID(c.Request.Context(), rid)
		ctx = clients.WithForwardHeaders(ctx, c.Request.Header)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
