package ratelimit

import (
	"fmt"

	"runbox/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Middleware enforces the per-client-IP limit on a route. A nil limiter
// passes everything through.
func Middleware(limiter *Limiter, routeKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("runbox:rate:ip:%s:%s", c.ClientIP(), routeKey)
		if err := limiter.Allow(c.Request.Context(), key); err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
