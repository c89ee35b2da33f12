package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/nexora-labs/instgate/internal/pkg/metrics"
	"github.com/nexora-labs/instgate/internal/ratelimit"
)

// RateLimitMiddleware enforces the per-credential request budget. Must run
// after AuthMiddleware; the budget is the one frozen into the credential at
// issuance, not the client's current tier.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, ok := CredentialFrom(c)
		if !ok {
			reject(c, apperrors.New(apperrors.ErrInvalidCredential, "unauthenticated request", nil))
			return
		}

		d := limiter.CheckAndIncrement(cred.ID, cred.RateLimit)
		c.Header("X-RateLimit-Limit", strconv.Itoa(cred.RateLimit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			metrics.RateLimitRejects.Inc()
			retryAfter := time.Until(d.ResetAt).Seconds()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter)))
			reject(c, apperrors.NewRateLimited(d.ResetAt))
			return
		}

		c.Next()
	}
}
