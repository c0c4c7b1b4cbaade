package api

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/charlesng35/authapp/internal/handlers"
	"github.com/charlesng35/authapp/internal/middleware"
)

type authRouteDeps struct {
	Handler       *handlers.AuthHandler
	LoginLimiter  *limiter.Limiter
	SignupLimiter *limiter.Limiter
}

func registerAuthRoutes(engine *gin.Engine, deps authRouteDeps) {
	auth := engine.Group("/api/auth")
	{
		auth.POST("/signup", middleware.RateLimit(deps.SignupLimiter), deps.Handler.Signup)
		auth.POST("/login", middleware.RateLimit(deps.LoginLimiter), deps.Handler.Login)
		auth.POST("/refresh", deps.Handler.Refresh)
		auth.POST("/logout", deps.Handler.Logout)
		auth.POST("/validate", deps.Handler.Validate)
		auth.GET("/me", middleware.RequireAuth(), deps.Handler.Me)
	}
}
