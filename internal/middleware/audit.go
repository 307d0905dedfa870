package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-records-api/internal/service"
)

// AuditOrigin carries the client address and user agent into the request context
// so lifecycle audit entries record who issued the call.
func AuditOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithAuditOrigin(c.Request.Context(), c.ClientIP(), c.GetHeader("User-Agent"))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
