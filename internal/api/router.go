// Package api exposes the lottery over HTTP with gin.
package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"saint-devil-lottery/internal/pkg/metrics"
)

// RouterConfig holds router settings.
type RouterConfig struct {
	Mode           string
	AdminToken     string
	TrustedProxies []string
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine with every route registered.
// ClientIP honors X-Forwarded-For only from TrustedProxies.
func NewRouter(cfg RouterConfig, h *Handler) (*gin.Engine, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(RecoveryMiddleware())

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(TimeoutMiddleware(cfg.RequestTimeout))
	v1.POST("/play", h.Play)
	v1.GET("/eligibility", h.Eligibility)
	v1.GET("/stats", h.PublicStats)

	admin := v1.Group("/admin")
	admin.Use(AdminMiddleware(cfg.AdminToken))
	admin.GET("/stats", h.AdminStats)
	admin.POST("/positions", h.SetPositions)
	admin.POST("/positions/random", h.RandomPositions)
	admin.POST("/reset", h.Reset)

	return r, nil
}
