package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/solidguard/internal/middleware"
)

type RouterDeps struct {
	Classify        *ClassifyHandler
	Generate        *GenerateHandler
	Health          *HealthHandler
	Auth            *AuthHandler
	JWTSecret       []byte
	RateLimitWindow time.Duration
}

// RegisterRoutes mounts the API. Bearer auth applies to everything except
// health and token exchange, and only when a secret is configured.
func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Health)
	if deps.Auth != nil {
		api.POST("/auth/token", deps.Auth.Token)
	}

	group := api.Group("")
	if len(deps.JWTSecret) > 0 {
		group.Use(middleware.JWTAuth(deps.JWTSecret))
	}
	group.GET("/classifications/:id", deps.Classify.Get)
	group.GET("/classifications/:id/report", deps.Classify.Report)

	limited := group.Group("")
	limited.Use(middleware.RateLimit(deps.RateLimitWindow))
	limited.POST("/classify", deps.Classify.Classify)
	limited.POST("/generate", deps.Generate.Generate)
}
