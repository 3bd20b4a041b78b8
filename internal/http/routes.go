package http

import (
	"time"

	"finance_tracker/internal/http/handlers"
	"finance_tracker/internal/http/middleware"
	"finance_tracker/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteConfig carries the limits and switches the routes depend on.
type RouteConfig struct {
	APIRateLimit     int
	APIRateWindow    time.Duration
	ExportRateLimit  int
	ExportRateWindow time.Duration
	AllowedOrigins   []string
	DevLogin         bool
}

type Deps struct {
	Handler  *handlers.Handler
	Health   *handlers.HealthHandler
	Resolver middleware.IdentityResolver
	Limiter  *middleware.RateLimiter
	Hub      *ws.Hub
}

func RegisterRoutes(r *gin.Engine, d Deps, cfg RouteConfig) {
	h := d.Handler
	auth := middleware.JWT(d.Resolver)
	adminRL := d.Limiter.PerUser("export", cfg.ExportRateLimit, cfg.ExportRateWindow)

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(d.Limiter.PerIP(cfg.APIRateLimit, cfg.APIRateWindow))

	v1.GET("/health", d.Health.Health)
	if cfg.DevLogin {
		v1.POST("/auth/dev-login", h.DevLogin)
	}

	v1.GET("/role/check", middleware.OptionalJWT(d.Resolver), h.RoleCheck)
	v1.GET("/me", auth, h.Me)

	// Reports
	v1.GET("/summary", auth, h.Summary)
	v1.GET("/monthly", auth, h.Monthly)
	v1.GET("/reports/export", auth, adminRL, h.Export)

	// Ledger
	tx := v1.Group("/transactions", auth)
	{
		tx.GET("", h.ListTransactions)
		tx.GET("/:id", h.GetTransaction)
		tx.POST("", h.CreateTransaction)
		tx.PATCH("/:id", h.UpdateTransaction)
		tx.DELETE("/:id", h.DeleteTransaction)
	}

	// Administration
	v1.GET("/users", auth, h.ListUsers)
	v1.PATCH("/users/:id", auth, h.UpdateUser)
	v1.GET("/audit", auth, h.AuditLogs)

	// Live ledger feed
	v1.GET("/ws", ws.HandleWS(d.Hub, d.Resolver, cfg.AllowedOrigins))
}
