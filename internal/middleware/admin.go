package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexora-labs/instgate/internal/config"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminMiddleware gates the operational endpoints (volume updates,
// offboarding) behind a static key. It deliberately refuses everything when
// no key is configured rather than failing open.
func AdminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || cfg.Auth.AdminKey == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin key not configured"})
			return
		}
		if c.GetHeader(HeaderAdminKey) != cfg.Auth.AdminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			return
		}
		c.Next()
	}
}
