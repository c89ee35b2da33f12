package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexora-labs/instgate/internal/config"
	"github.com/nexora-labs/instgate/internal/credstore"
	"github.com/nexora-labs/instgate/internal/middleware"
	"github.com/nexora-labs/instgate/internal/ratelimit"
	"github.com/nexora-labs/instgate/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the full route table and middleware chain. Trading and
// read endpoints sit behind credential auth plus the per-credential rate
// limiter; onboarding and operational endpoints are gated by the admin key.
func NewRouter(cfg *config.Config, h *InstitutionalHandler, creds *credstore.Store, clients service.ClientRepo, limiter *ratelimit.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	inst := r.Group("/institutional")

	admin := inst.Group("")
	admin.Use(middleware.AdminMiddleware(cfg))
	admin.POST("/onboard", h.Onboard)
	admin.POST("/credentials", h.IssueCredential)
	admin.POST("/:clientId/volume", h.UpdateVolume)
	admin.DELETE("/:clientId", h.Offboard)

	authed := inst.Group("")
	authed.Use(middleware.AuthMiddleware(creds, clients))
	authed.Use(middleware.RateLimitMiddleware(limiter))
	authed.POST("/trade", h.PlaceOrder)
	authed.POST("/trade/bulk", h.BulkOrders)
	authed.DELETE("/credentials/:credentialId", h.RevokeCredential)
	authed.GET("/:clientId", h.GetClient)
	authed.GET("/:clientId/analytics", h.GetAnalytics)

	return r
}
